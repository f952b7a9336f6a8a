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

// GenerationRepository хранит ключ месяца последней генерации билетов
type GenerationRepository struct {
	db *database.DB
}

func NewGenerationRepository(db *database.DB) *GenerationRepository {
	return &GenerationRepository{db: db}
}

// LockMonthKey returns the stored month key of the stadium and holds a row
// lock on it until the surrounding transaction ends. Must be called inside WithTx.
func (r *GenerationRepository) LockMonthKey(ctx context.Context, stadiumID int64) (string, error) {
	if !database.InTx(ctx) {
		return "", fmt.Errorf("failed to lock generation state: transaction required")
	}
	conn := r.db.Conn(ctx)

	_, err := conn.ExecContext(ctx,
		`INSERT INTO generation_state (stadium_id, month_key) VALUES ($1, '') ON CONFLICT (stadium_id) DO NOTHING`,
		stadiumID)
	if err != nil {
		return "", fmt.Errorf("failed to init generation state: %w", database.Classify(err))
	}

	var monthKey string
	err = sqlx.GetContext(ctx, conn, &monthKey,
		`SELECT month_key FROM generation_state WHERE stadium_id = $1 FOR UPDATE`, stadiumID)
	if err != nil {
		return "", fmt.Errorf("failed to lock generation state: %w", database.Classify(err))
	}
	return monthKey, nil
}

func (r *GenerationRepository) SaveMonthKey(ctx context.Context, stadiumID int64, monthKey string) error {
	_, err := r.db.Conn(ctx).ExecContext(ctx,
		`UPDATE generation_state SET month_key = $2, generated_at = NOW() WHERE stadium_id = $1`,
		stadiumID, monthKey)
	if err != nil {
		return fmt.Errorf("failed to save generation state: %w", database.Classify(err))
	}
	return nil
}

func (r *GenerationRepository) Get(ctx context.Context, stadiumID int64) (*models.GenerationState, error) {
	var state models.GenerationState
	err := sqlx.GetContext(ctx, r.db.Conn(ctx), &state,
		`SELECT stadium_id, month_key, generated_at FROM generation_state WHERE stadium_id = $1`, stadiumID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get generation state: %w", database.Classify(err))
	}
	return &state, nil
}
