package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"stadiumtix/internal/calendar"
	apperrors "stadiumtix/internal/errors"
	"stadiumtix/internal/logger"
	"stadiumtix/internal/metrics"
	"stadiumtix/internal/models"
)

// MaxCalendarDays ограничение длины календаря доступности
const MaxCalendarDays = 62

// AvailabilityService answers which offers are purchasable for a stadium and date
type AvailabilityService struct {
	tickets   TicketStore
	overrides OverrideStore
	discounts *DiscountService
	cutoff    *calendar.Cutoff
	cache     OffersCache
}

func NewAvailabilityService(tickets TicketStore, overrides OverrideStore, discounts *DiscountService, cutoff *calendar.Cutoff, cache OffersCache) *AvailabilityService {
	return &AvailabilityService{
		tickets:   tickets,
		overrides: overrides,
		discounts: discounts,
		cutoff:    cutoff,
		cache:     cache,
	}
}

// ResolveOffers returns the sellable offers of a stadium on date (YYYY-MM-DD).
// A date past the purchase cutoff yields an empty list.
func (s *AvailabilityService) ResolveOffers(ctx context.Context, stadiumID int64, date string) ([]models.Offer, error) {
	if stadiumID <= 0 {
		return nil, apperrors.InvalidInput("stadium id must be positive")
	}
	d, err := calendar.ParseDate(date)
	if err != nil {
		return nil, err
	}
	return s.resolve(ctx, stadiumID, d)
}

// HasAvailability reports whether anything can be sold on date
func (s *AvailabilityService) HasAvailability(ctx context.Context, stadiumID int64, date string) (bool, error) {
	offers, err := s.ResolveOffers(ctx, stadiumID, date)
	if err != nil {
		return false, err
	}
	return len(offers) > 0, nil
}

// Calendar reports availability for days consecutive dates starting at from
// (today when empty).
func (s *AvailabilityService) Calendar(ctx context.Context, stadiumID int64, from string, days int) ([]models.CalendarDay, error) {
	if stadiumID <= 0 {
		return nil, apperrors.InvalidInput("stadium id must be positive")
	}
	if days < 1 || days > MaxCalendarDays {
		return nil, apperrors.InvalidInput("days must be within 1..%d", MaxCalendarDays)
	}

	start := s.cutoff.Today()
	if from != "" {
		d, err := calendar.ParseDate(from)
		if err != nil {
			return nil, err
		}
		start = d
	}

	result := make([]models.CalendarDay, 0, days)
	for i := 0; i < days; i++ {
		d := start.AddDate(0, 0, i)
		offers, err := s.resolve(ctx, stadiumID, d)
		if err != nil {
			return nil, err
		}
		result = append(result, models.CalendarDay{
			Date:      calendar.FormatDate(d),
			Available: len(offers) > 0,
		})
	}
	return result, nil
}

func (s *AvailabilityService) resolve(ctx context.Context, stadiumID int64, d time.Time) ([]models.Offer, error) {
	if !s.cutoff.CanPurchase(d) {
		metrics.OffersResolvedTotal.WithLabelValues("closed").Inc()
		return []models.Offer{}, nil
	}

	date := calendar.FormatDate(d)
	if cached, ok, err := s.cache.Get(ctx, stadiumID, date); err != nil {
		logger.WithContext(ctx).Warn("Offers cache read failed", "error", err, "stadium_id", stadiumID, "date", date)
	} else if ok {
		metrics.OffersResolvedTotal.WithLabelValues("cache").Inc()
		return cached, nil
	}

	// версия читается до базы: инвалидация во время чтения отменит запись в кэш
	version, verErr := s.cache.Version(ctx, stadiumID, date)
	if verErr != nil {
		logger.WithContext(ctx).Warn("Offers cache version read failed", "error", verErr, "stadium_id", stadiumID, "date", date)
	}

	regular, err := s.tickets.ListRegularForWeekday(ctx, stadiumID, d.Weekday())
	if err != nil {
		return nil, fmt.Errorf("failed to resolve offers: %w", err)
	}
	special, err := s.tickets.ListSpecialForDate(ctx, stadiumID, d)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve offers: %w", err)
	}

	tickets := append(regular, special...)
	offers := []models.Offer{}
	if len(tickets) > 0 {
		ids := make([]int64, len(tickets))
		for i := range tickets {
			ids[i] = tickets[i].ID
		}

		ledger, err := s.overrides.EnsureForDate(ctx, stadiumID, d, ids)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve offers: %w", err)
		}
		discounts, err := s.discounts.ForDate(ctx, stadiumID, d)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve offers: %w", err)
		}

		for i := range tickets {
			t := &tickets[i]
			row, ok := ledger[t.ID]
			if !ok || row.Kind != t.Kind || !row.Sellable() {
				continue
			}
			offers = append(offers, buildOffer(t, row, discounts[t.Ref()]))
		}
		sortOffers(offers)
	}

	if verErr == nil {
		if err := s.cache.Set(ctx, stadiumID, date, version, offers); err != nil {
			logger.WithContext(ctx).Warn("Offers cache write failed", "error", err, "stadium_id", stadiumID, "date", date)
		}
	}
	metrics.OffersResolvedTotal.WithLabelValues("store").Inc()

	return offers, nil
}

// buildOffer applies the pricing order: price override, then discount, then base price
func buildOffer(t *models.TicketDefinition, row *models.DateOverride, rule *models.DiscountRule) models.Offer {
	offer := models.Offer{
		TicketID:          t.ID,
		Kind:              t.Kind,
		Name:              t.Name,
		Price:             t.BasePrice,
		AvailableQuantity: row.Quantity,
		DisplayOrder:      t.DisplayOrder,
	}

	if row.NameOverride != nil && *row.NameOverride != "" {
		offer.Name = *row.NameOverride
	}

	switch {
	case row.PriceOverride.Valid:
		offer.Price = row.PriceOverride.Decimal
	case rule != nil:
		offer.Price = rule.DiscountPrice
		offer.Discount = &models.DiscountInfo{
			OriginalPrice:  t.BasePrice,
			DiscountPrice:  rule.DiscountPrice,
			DiscountAmount: t.BasePrice.Sub(rule.DiscountPrice),
		}
	}

	return offer
}

func sortOffers(offers []models.Offer) {
	sort.SliceStable(offers, func(i, j int) bool {
		if offers[i].DisplayOrder != offers[j].DisplayOrder {
			return offers[i].DisplayOrder < offers[j].DisplayOrder
		}
		return offers[i].TicketID < offers[j].TicketID
	})
}
