package service

import (
	"context"
	"time"

	"stadiumtix/internal/models"
)

// TicketStore is the ticket catalog
type TicketStore interface {
	Create(ctx context.Context, t *models.TicketDefinition) error
	GetByID(ctx context.Context, id int64) (*models.TicketDefinition, error)
	GetByIDs(ctx context.Context, ids []int64) ([]models.TicketDefinition, error)
	ListByStadium(ctx context.Context, stadiumID int64, kind models.TicketKind) ([]models.TicketDefinition, error)
	ListRegularForWeekday(ctx context.Context, stadiumID int64, weekday time.Weekday) ([]models.TicketDefinition, error)
	ListSpecialForDate(ctx context.Context, stadiumID int64, date time.Time) ([]models.TicketDefinition, error)
	Update(ctx context.Context, t *models.TicketDefinition) error
	Delete(ctx context.Context, id int64) (bool, error)
}

// OverrideStore is the per-date ledger
type OverrideStore interface {
	GetOrCreate(ctx context.Context, key models.OverrideKey) (*models.DateOverride, error)
	EnsureForDate(ctx context.Context, stadiumID int64, date time.Time, ticketIDs []int64) (map[int64]*models.DateOverride, error)
	CreateDisabled(ctx context.Context, key models.OverrideKey, quantity int) error
	Update(ctx context.Context, key models.OverrideKey, patch models.OverridePatch) (*models.DateOverride, error)
	Decrement(ctx context.Context, key models.OverrideKey, quantity int) (int, bool, error)
	PurgeBefore(ctx context.Context, date time.Time) (int64, error)
	CountBefore(ctx context.Context, date time.Time) (int64, error)
}

type DiscountStore interface {
	Create(ctx context.Context, rule *models.DiscountRule) error
	FindMatching(ctx context.Context, stadiumID, ticketID int64, kind models.TicketKind, day, month int) (*models.DiscountRule, error)
	ListMatchingForDate(ctx context.Context, stadiumID int64, day, month int) ([]models.DiscountRule, error)
	List(ctx context.Context, stadiumID, ticketID int64) ([]models.DiscountRule, error)
	Delete(ctx context.Context, id int64) (*models.DiscountRule, error)
}

type GenerationStore interface {
	LockMonthKey(ctx context.Context, stadiumID int64) (string, error)
	SaveMonthKey(ctx context.Context, stadiumID int64, monthKey string) error
	Get(ctx context.Context, stadiumID int64) (*models.GenerationState, error)
}

// Transactor runs fn in one database transaction carried by ctx
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// OffersCache is a read-through cache of resolved offers per stadium and date.
// Version is read before the ledger and handed back to Set, which skips the
// write if an invalidation happened in between.
type OffersCache interface {
	Get(ctx context.Context, stadiumID int64, date string) ([]models.Offer, bool, error)
	Version(ctx context.Context, stadiumID int64, date string) (string, error)
	Set(ctx context.Context, stadiumID int64, date, version string, offers []models.Offer) error
	InvalidateDate(ctx context.Context, stadiumID int64, date string) error
	InvalidateStadium(ctx context.Context, stadiumID int64) error
}

type EventPublisher interface {
	Publish(subject string, data interface{}) error
}

// Stores groups the persistence dependencies of the services
type Stores struct {
	Tickets    TicketStore
	Overrides  OverrideStore
	Discounts  DiscountStore
	Generation GenerationStore
	Tx         Transactor
}

// NoopCache disables offer caching
type NoopCache struct{}

func (NoopCache) Get(context.Context, int64, string) ([]models.Offer, bool, error) {
	return nil, false, nil
}
func (NoopCache) Version(context.Context, int64, string) (string, error) { return "", nil }
func (NoopCache) Set(context.Context, int64, string, string, []models.Offer) error {
	return nil
}
func (NoopCache) InvalidateDate(context.Context, int64, string) error { return nil }
func (NoopCache) InvalidateStadium(context.Context, int64) error      { return nil }

// NoopPublisher drops events
type NoopPublisher struct{}

func (NoopPublisher) Publish(string, interface{}) error { return nil }
