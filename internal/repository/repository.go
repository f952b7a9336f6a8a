package repository

import (
	"errors"
	"fmt"

	"github.com/lib/pq"

	"stadiumtix/internal/database"
	apperrors "stadiumtix/internal/errors"
	"stadiumtix/internal/service"
)

type Repositories struct {
	Tickets    *TicketRepository
	Overrides  *OverrideRepository
	Discounts  *DiscountRepository
	Generation *GenerationRepository
}

func NewRepositories(db *database.DB) *Repositories {
	return &Repositories{
		Tickets:    NewTicketRepository(db),
		Overrides:  NewOverrideRepository(db),
		Discounts:  NewDiscountRepository(db),
		Generation: NewGenerationRepository(db),
	}
}

// NewStores wires the Postgres repositories behind the service interfaces
func NewStores(db *database.DB) service.Stores {
	repos := NewRepositories(db)
	return service.Stores{
		Tickets:    repos.Tickets,
		Overrides:  repos.Overrides,
		Discounts:  repos.Discounts,
		Generation: repos.Generation,
		Tx:         db,
	}
}

// Коды ошибок PostgreSQL
const (
	pqForeignKeyViolation = "23503"
	pqCheckViolation      = "23514"
)

// classifyWrite maps constraint violations on writes to domain errors
func classifyWrite(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqForeignKeyViolation:
			return fmt.Errorf("%w: %s", apperrors.ErrTicketNotFound, pqErr.Message)
		case pqCheckViolation:
			return fmt.Errorf("%w: %s", apperrors.ErrInvalidInput, pqErr.Message)
		}
	}
	return database.Classify(err)
}
