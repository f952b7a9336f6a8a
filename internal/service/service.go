package service

import (
	"context"
	"time"

	"stadiumtix/internal/calendar"
	"stadiumtix/internal/logger"
)

type Services struct {
	Availability  *AvailabilityService
	Reservations  *ReservationService
	Overrides     *OverrideService
	Discounts     *DiscountService
	Catalog       *CatalogService
	Replenishment *ReplenishmentService
}

// NewServices wires the services over the given stores. A nil cache or
// publisher disables caching or event publishing.
func NewServices(stores Stores, cutoff *calendar.Cutoff, cache OffersCache, publisher EventPublisher, opts ReplenishmentOptions) *Services {
	if cache == nil {
		cache = NoopCache{}
	}
	if publisher == nil {
		publisher = NoopPublisher{}
	}

	discountService := NewDiscountService(stores.Discounts, stores.Tickets, cache)

	return &Services{
		Availability:  NewAvailabilityService(stores.Tickets, stores.Overrides, discountService, cutoff, cache),
		Reservations:  NewReservationService(stores.Tickets, stores.Overrides, cutoff, cache, publisher),
		Overrides:     NewOverrideService(stores.Overrides, cutoff, cache, publisher),
		Discounts:     discountService,
		Catalog:       NewCatalogService(stores.Tickets, cache, publisher),
		Replenishment: NewReplenishmentService(stores, cutoff, cache, publisher, opts),
	}
}

// publish sends an event; failures are logged and never fail the operation
func publish(ctx context.Context, publisher EventPublisher, subject string, data interface{}) {
	if err := publisher.Publish(subject, data); err != nil {
		logger.WithContext(ctx).Error("Failed to publish event",
			"error", err,
			"event_type", subject)
	}
}

// invalidate drops cached offers of one date, or the whole stadium when date is empty
func invalidate(ctx context.Context, cache OffersCache, stadiumID int64, date string) {
	var err error
	if date == "" {
		err = cache.InvalidateStadium(ctx, stadiumID)
	} else {
		err = cache.InvalidateDate(ctx, stadiumID, date)
	}
	if err != nil {
		logger.WithContext(ctx).Warn("Failed to invalidate offers cache",
			"error", err,
			"stadium_id", stadiumID,
			"date", date)
	}
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
