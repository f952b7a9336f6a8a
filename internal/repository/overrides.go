package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"stadiumtix/internal/database"
	apperrors "stadiumtix/internal/errors"
	"stadiumtix/internal/models"
)

const overrideColumns = `id, stadium_id, ticket_id, ticket_kind, sale_date, quantity, initial_quantity,
	enabled, name_override, price_override, created_at, updated_at`

const overrideKeyPredicate = `stadium_id = $1 AND ticket_id = $2 AND ticket_kind = $3 AND sale_date = $4`

// OverrideRepository is the per-date ledger. Decrement is the only write that
// lowers a quantity.
type OverrideRepository struct {
	db *database.DB
}

func NewOverrideRepository(db *database.DB) *OverrideRepository {
	return &OverrideRepository{db: db}
}

// GetOrCreate returns the ledger row for key, materializing it from the ticket
// definition on first access. Concurrent creators race on the unique key; the
// losers fall through to the re-read.
func (r *OverrideRepository) GetOrCreate(ctx context.Context, key models.OverrideKey) (*models.DateOverride, error) {
	conn := r.db.Conn(ctx)

	insert := `
		INSERT INTO ticket_date_overrides
			(stadium_id, ticket_id, ticket_kind, sale_date, quantity, initial_quantity, enabled)
		SELECT t.stadium_id, t.id, t.kind, $4, t.base_quantity, t.base_quantity, TRUE
		FROM tickets t
		WHERE t.stadium_id = $1 AND t.id = $2 AND t.kind = $3
		ON CONFLICT (stadium_id, ticket_id, ticket_kind, sale_date) DO NOTHING`

	if _, err := conn.ExecContext(ctx, insert, key.StadiumID, key.TicketID, key.Kind, key.Date); err != nil {
		return nil, fmt.Errorf("failed to materialize override: %w", database.Classify(err))
	}

	o, err := r.get(ctx, conn, key)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, fmt.Errorf("%w: ticket %d (%s) of stadium %d",
			apperrors.ErrTicketNotFound, key.TicketID, key.Kind, key.StadiumID)
	}
	return o, nil
}

// Get returns the ledger row without materializing it
func (r *OverrideRepository) Get(ctx context.Context, key models.OverrideKey) (*models.DateOverride, error) {
	return r.get(ctx, r.db.Conn(ctx), key)
}

func (r *OverrideRepository) get(ctx context.Context, conn sqlx.QueryerContext, key models.OverrideKey) (*models.DateOverride, error) {
	var o models.DateOverride
	query := `SELECT ` + overrideColumns + ` FROM ticket_date_overrides WHERE ` + overrideKeyPredicate

	err := sqlx.GetContext(ctx, conn, &o, query, key.StadiumID, key.TicketID, key.Kind, key.Date)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get override: %w", database.Classify(err))
	}
	return &o, nil
}

// EnsureForDate materializes the rows of several tickets of one stadium and
// date in one round trip and returns them keyed by ticket id.
func (r *OverrideRepository) EnsureForDate(ctx context.Context, stadiumID int64, date time.Time, ticketIDs []int64) (map[int64]*models.DateOverride, error) {
	result := make(map[int64]*models.DateOverride, len(ticketIDs))
	if len(ticketIDs) == 0 {
		return result, nil
	}
	conn := r.db.Conn(ctx)

	insert := `
		INSERT INTO ticket_date_overrides
			(stadium_id, ticket_id, ticket_kind, sale_date, quantity, initial_quantity, enabled)
		SELECT t.stadium_id, t.id, t.kind, $2, t.base_quantity, t.base_quantity, TRUE
		FROM tickets t
		WHERE t.stadium_id = $1 AND t.id = ANY($3)
		ON CONFLICT (stadium_id, ticket_id, ticket_kind, sale_date) DO NOTHING`

	if _, err := conn.ExecContext(ctx, insert, stadiumID, date, pq.Array(ticketIDs)); err != nil {
		return nil, fmt.Errorf("failed to materialize overrides: %w", database.Classify(err))
	}

	var rows []models.DateOverride
	query := `
		SELECT ` + overrideColumns + `
		FROM ticket_date_overrides
		WHERE stadium_id = $1 AND sale_date = $2 AND ticket_id = ANY($3)`

	if err := sqlx.SelectContext(ctx, conn, &rows, query, stadiumID, date, pq.Array(ticketIDs)); err != nil {
		return nil, fmt.Errorf("failed to load overrides: %w", database.Classify(err))
	}

	for i := range rows {
		result[rows[i].TicketID] = &rows[i]
	}
	return result, nil
}

// CreateDisabled inserts a disabled row with the given stock unless one exists
func (r *OverrideRepository) CreateDisabled(ctx context.Context, key models.OverrideKey, quantity int) error {
	query := `
		INSERT INTO ticket_date_overrides
			(stadium_id, ticket_id, ticket_kind, sale_date, quantity, initial_quantity, enabled)
		VALUES ($1, $2, $3, $4, $5, $5, FALSE)
		ON CONFLICT (stadium_id, ticket_id, ticket_kind, sale_date) DO NOTHING`

	_, err := r.db.Conn(ctx).ExecContext(ctx, query, key.StadiumID, key.TicketID, key.Kind, key.Date, quantity)
	if err != nil {
		return fmt.Errorf("failed to create disabled override: %w", classifyWrite(err))
	}
	return nil
}

// Update applies patch to an existing row
func (r *OverrideRepository) Update(ctx context.Context, key models.OverrideKey, patch models.OverridePatch) (*models.DateOverride, error) {
	var sets []string
	var args []interface{}
	argIndex := 1

	add := func(expr string, value interface{}) {
		sets = append(sets, fmt.Sprintf(expr, argIndex))
		args = append(args, value)
		argIndex++
	}

	if patch.Enabled != nil {
		add("enabled = $%d", *patch.Enabled)
	}
	if patch.ClearNameOverride {
		sets = append(sets, "name_override = NULL")
	} else if patch.NameOverride != nil {
		add("name_override = $%d", *patch.NameOverride)
	}
	if patch.ClearPriceOverride {
		sets = append(sets, "price_override = NULL")
	} else if patch.PriceOverride != nil {
		add("price_override = $%d", *patch.PriceOverride)
	}
	if patch.Quantity != nil {
		add("quantity = $%d", *patch.Quantity)
	}
	sets = append(sets, "updated_at = NOW()")

	query := fmt.Sprintf(`
		UPDATE ticket_date_overrides
		SET %s
		WHERE stadium_id = $%d AND ticket_id = $%d AND ticket_kind = $%d AND sale_date = $%d
		RETURNING %s`,
		strings.Join(sets, ", "), argIndex, argIndex+1, argIndex+2, argIndex+3, overrideColumns)
	args = append(args, key.StadiumID, key.TicketID, key.Kind, key.Date)

	var o models.DateOverride
	err := sqlx.GetContext(ctx, r.db.Conn(ctx), &o, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrTicketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update override: %w", classifyWrite(err))
	}
	return &o, nil
}

// Decrement atomically takes quantity units from an enabled row. It reports
// false when the row is missing, disabled or holds fewer units; nothing is
// written in that case.
func (r *OverrideRepository) Decrement(ctx context.Context, key models.OverrideKey, quantity int) (int, bool, error) {
	query := `
		UPDATE ticket_date_overrides
		SET quantity = quantity - $5, updated_at = NOW()
		WHERE ` + overrideKeyPredicate + ` AND quantity >= $5 AND enabled
		RETURNING quantity`

	var remaining int
	err := r.db.Conn(ctx).QueryRowxContext(ctx, query,
		key.StadiumID, key.TicketID, key.Kind, key.Date, quantity,
	).Scan(&remaining)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to decrement inventory: %w", database.Classify(err))
	}
	return remaining, true, nil
}

// PurgeBefore deletes rows dated strictly before date
func (r *OverrideRepository) PurgeBefore(ctx context.Context, date time.Time) (int64, error) {
	res, err := r.db.Conn(ctx).ExecContext(ctx, `DELETE FROM ticket_date_overrides WHERE sale_date < $1`, date)
	if err != nil {
		return 0, fmt.Errorf("failed to purge overrides: %w", database.Classify(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to purge overrides: %w", err)
	}
	return n, nil
}

// CountBefore counts rows PurgeBefore would delete
func (r *OverrideRepository) CountBefore(ctx context.Context, date time.Time) (int64, error) {
	var n int64
	err := sqlx.GetContext(ctx, r.db.Conn(ctx), &n, `SELECT COUNT(*) FROM ticket_date_overrides WHERE sale_date < $1`, date)
	if err != nil {
		return 0, fmt.Errorf("failed to count overrides: %w", database.Classify(err))
	}
	return n, nil
}
