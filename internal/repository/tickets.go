package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"stadiumtix/internal/database"
	apperrors "stadiumtix/internal/errors"
	"stadiumtix/internal/models"
)

const ticketColumns = `id, stadium_id, kind, name, base_price, base_quantity, display_order,
	weekdays, ticket_date, created_at, updated_at`

type TicketRepository struct {
	db *database.DB
}

func NewTicketRepository(db *database.DB) *TicketRepository {
	return &TicketRepository{db: db}
}

func (r *TicketRepository) Create(ctx context.Context, t *models.TicketDefinition) error {
	query := `
		INSERT INTO tickets (stadium_id, kind, name, base_price, base_quantity, display_order, weekdays, ticket_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`

	err := r.db.Conn(ctx).QueryRowxContext(ctx, query,
		t.StadiumID,
		t.Kind,
		t.Name,
		t.BasePrice,
		t.BaseQuantity,
		t.DisplayOrder,
		t.Weekdays,
		t.Date,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create ticket: %w", database.Classify(err))
	}
	return nil
}

func (r *TicketRepository) GetByID(ctx context.Context, id int64) (*models.TicketDefinition, error) {
	var t models.TicketDefinition
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id = $1`

	err := sqlx.GetContext(ctx, r.db.Conn(ctx), &t, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ticket: %w", database.Classify(err))
	}
	return &t, nil
}

func (r *TicketRepository) GetByIDs(ctx context.Context, ids []int64) ([]models.TicketDefinition, error) {
	var tickets []models.TicketDefinition
	if len(ids) == 0 {
		return tickets, nil
	}

	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id = ANY($1) ORDER BY id`
	if err := sqlx.SelectContext(ctx, r.db.Conn(ctx), &tickets, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("failed to get tickets: %w", database.Classify(err))
	}
	return tickets, nil
}

// ListByStadium returns the catalog of a stadium, optionally filtered by kind
func (r *TicketRepository) ListByStadium(ctx context.Context, stadiumID int64, kind models.TicketKind) ([]models.TicketDefinition, error) {
	var tickets []models.TicketDefinition
	args := []interface{}{stadiumID}

	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE stadium_id = $1`
	if kind != "" {
		query += fmt.Sprintf(" AND kind = $%d", len(args)+1)
		args = append(args, kind)
	}
	query += " ORDER BY display_order, id"

	if err := sqlx.SelectContext(ctx, r.db.Conn(ctx), &tickets, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", database.Classify(err))
	}
	return tickets, nil
}

func (r *TicketRepository) ListRegularForWeekday(ctx context.Context, stadiumID int64, weekday time.Weekday) ([]models.TicketDefinition, error) {
	var tickets []models.TicketDefinition
	query := `
		SELECT ` + ticketColumns + `
		FROM tickets
		WHERE stadium_id = $1 AND kind = 'regular' AND $2 = ANY(weekdays)
		ORDER BY display_order, id`

	if err := sqlx.SelectContext(ctx, r.db.Conn(ctx), &tickets, query, stadiumID, int(weekday)); err != nil {
		return nil, fmt.Errorf("failed to list regular tickets: %w", database.Classify(err))
	}
	return tickets, nil
}

func (r *TicketRepository) ListSpecialForDate(ctx context.Context, stadiumID int64, date time.Time) ([]models.TicketDefinition, error) {
	var tickets []models.TicketDefinition
	query := `
		SELECT ` + ticketColumns + `
		FROM tickets
		WHERE stadium_id = $1 AND kind = 'special' AND ticket_date = $2
		ORDER BY display_order, id`

	if err := sqlx.SelectContext(ctx, r.db.Conn(ctx), &tickets, query, stadiumID, date); err != nil {
		return nil, fmt.Errorf("failed to list special tickets: %w", database.Classify(err))
	}
	return tickets, nil
}

// Update rewrites the definition. Materialized ledger rows are not touched.
func (r *TicketRepository) Update(ctx context.Context, t *models.TicketDefinition) error {
	query := `
		UPDATE tickets
		SET name = $1, base_price = $2, base_quantity = $3, display_order = $4,
		    weekdays = $5, ticket_date = $6, updated_at = NOW()
		WHERE id = $7
		RETURNING updated_at`

	err := r.db.Conn(ctx).QueryRowxContext(ctx, query,
		t.Name,
		t.BasePrice,
		t.BaseQuantity,
		t.DisplayOrder,
		t.Weekdays,
		t.Date,
		t.ID,
	).Scan(&t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.ErrTicketNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update ticket: %w", database.Classify(err))
	}
	return nil
}

// Delete removes the definition; ledger rows and discount rules cascade
func (r *TicketRepository) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.Conn(ctx).ExecContext(ctx, `DELETE FROM tickets WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete ticket: %w", database.Classify(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete ticket: %w", err)
	}
	return n > 0, nil
}
