package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"stadiumtix/internal/database"
	"stadiumtix/internal/models"
)

const discountColumns = `id, stadium_id, ticket_id, ticket_kind, day_of_month, month, discount_price, created_at`

type DiscountRepository struct {
	db *database.DB
}

func NewDiscountRepository(db *database.DB) *DiscountRepository {
	return &DiscountRepository{db: db}
}

func (r *DiscountRepository) Create(ctx context.Context, rule *models.DiscountRule) error {
	query := `
		INSERT INTO discount_rules (stadium_id, ticket_id, ticket_kind, day_of_month, month, discount_price)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	err := r.db.Conn(ctx).QueryRowxContext(ctx, query,
		rule.StadiumID,
		rule.TicketID,
		rule.TicketKind,
		rule.DayOfMonth,
		rule.Month,
		rule.DiscountPrice,
	).Scan(&rule.ID, &rule.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create discount rule: %w", classifyWrite(err))
	}
	return nil
}

// FindMatching returns the lowest-id rule for the ticket on (day, month), or nil
func (r *DiscountRepository) FindMatching(ctx context.Context, stadiumID, ticketID int64, kind models.TicketKind, day, month int) (*models.DiscountRule, error) {
	var rule models.DiscountRule
	query := `
		SELECT ` + discountColumns + `
		FROM discount_rules
		WHERE stadium_id = $1 AND ticket_id = $2 AND ticket_kind = $3 AND day_of_month = $4 AND month = $5
		ORDER BY id ASC
		LIMIT 1`

	err := sqlx.GetContext(ctx, r.db.Conn(ctx), &rule, query, stadiumID, ticketID, kind, day, month)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find discount rule: %w", database.Classify(err))
	}
	return &rule, nil
}

// ListMatchingForDate returns every rule of a stadium on (day, month), lowest id first
func (r *DiscountRepository) ListMatchingForDate(ctx context.Context, stadiumID int64, day, month int) ([]models.DiscountRule, error) {
	var rules []models.DiscountRule
	query := `
		SELECT ` + discountColumns + `
		FROM discount_rules
		WHERE stadium_id = $1 AND day_of_month = $2 AND month = $3
		ORDER BY id ASC`

	if err := sqlx.SelectContext(ctx, r.db.Conn(ctx), &rules, query, stadiumID, day, month); err != nil {
		return nil, fmt.Errorf("failed to list discount rules: %w", database.Classify(err))
	}
	return rules, nil
}

// List returns the rules of a stadium, optionally only for one ticket
func (r *DiscountRepository) List(ctx context.Context, stadiumID, ticketID int64) ([]models.DiscountRule, error) {
	var rules []models.DiscountRule
	args := []interface{}{stadiumID}

	query := `SELECT ` + discountColumns + ` FROM discount_rules WHERE stadium_id = $1`
	if ticketID > 0 {
		query += fmt.Sprintf(" AND ticket_id = $%d", len(args)+1)
		args = append(args, ticketID)
	}
	query += " ORDER BY month, day_of_month, id"

	if err := sqlx.SelectContext(ctx, r.db.Conn(ctx), &rules, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list discount rules: %w", database.Classify(err))
	}
	return rules, nil
}

// Delete removes a rule and returns it, or nil when it did not exist
func (r *DiscountRepository) Delete(ctx context.Context, id int64) (*models.DiscountRule, error) {
	var rule models.DiscountRule
	query := `DELETE FROM discount_rules WHERE id = $1 RETURNING ` + discountColumns

	err := sqlx.GetContext(ctx, r.db.Conn(ctx), &rule, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to delete discount rule: %w", database.Classify(err))
	}
	return &rule, nil
}
