package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"stadiumtix/internal/calendar"
	apperrors "stadiumtix/internal/errors"
	"stadiumtix/internal/logger"
	"stadiumtix/internal/metrics"
	"stadiumtix/internal/models"
)

// OverrideService администрирование строк учета на дату
type OverrideService struct {
	overrides OverrideStore
	cutoff    *calendar.Cutoff
	cache     OffersCache
	publisher EventPublisher
}

func NewOverrideService(overrides OverrideStore, cutoff *calendar.Cutoff, cache OffersCache, publisher EventPublisher) *OverrideService {
	return &OverrideService{
		overrides: overrides,
		cutoff:    cutoff,
		cache:     cache,
		publisher: publisher,
	}
}

// ParseKey validates the raw parts of a ledger key
func ParseKey(stadiumID, ticketID int64, kind, date string) (models.OverrideKey, error) {
	k := models.TicketKind(strings.ToLower(kind))
	switch {
	case stadiumID <= 0 || ticketID <= 0:
		return models.OverrideKey{}, apperrors.InvalidInput("stadium and ticket ids must be positive")
	case !k.Valid():
		return models.OverrideKey{}, apperrors.InvalidInput("unknown ticket kind %q", kind)
	}
	d, err := calendar.ParseDate(date)
	if err != nil {
		return models.OverrideKey{}, err
	}
	return models.OverrideKey{StadiumID: stadiumID, TicketID: ticketID, Kind: k, Date: d}, nil
}

// Get returns the ledger row for key, materializing it when absent
func (s *OverrideService) Get(ctx context.Context, key models.OverrideKey) (*models.DateOverride, error) {
	o, err := s.overrides.GetOrCreate(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to get override: %w", err)
	}
	return o, nil
}

// SetOverrides applies an administrative patch. Quantity may be raised or
// lowered but never below zero; initial_quantity is left as is.
func (s *OverrideService) SetOverrides(ctx context.Context, key models.OverrideKey, patch models.OverridePatch) (*models.DateOverride, error) {
	if err := validatePatch(patch); err != nil {
		return nil, err
	}

	if _, err := s.overrides.GetOrCreate(ctx, key); err != nil {
		return nil, fmt.Errorf("failed to materialize override: %w", err)
	}
	if patch.Empty() {
		return s.Get(ctx, key)
	}

	o, err := s.overrides.Update(ctx, key, patch)
	if err != nil {
		return nil, fmt.Errorf("failed to update override: %w", err)
	}

	date := calendar.FormatDate(key.Date)
	invalidate(ctx, s.cache, key.StadiumID, date)
	publish(ctx, s.publisher, models.EventOverrideUpdated, models.OverrideUpdatedEvent{
		StadiumID: o.StadiumID,
		TicketID:  o.TicketID,
		Kind:      o.Kind,
		Date:      date,
		Quantity:  o.Quantity,
		Enabled:   o.Enabled,
		Timestamp: nowUTC(),
	})

	logger.WithContext(ctx).Info("Override updated",
		"stadium_id", o.StadiumID,
		"ticket_id", o.TicketID,
		"date", date,
		"quantity", o.Quantity,
		"enabled", o.Enabled)

	return o, nil
}

// PatchFromRequest converts the API request into a patch
func PatchFromRequest(req *models.UpdateOverrideRequest) models.OverridePatch {
	patch := models.OverridePatch{
		NameOverride:       req.NameOverride,
		ClearNameOverride:  req.ClearNameOverride,
		PriceOverride:      req.PriceOverride,
		ClearPriceOverride: req.ClearPriceOverride,
		Quantity:           req.Quantity,
	}
	if req.Enabled != nil {
		enabled := req.Enabled.Bool()
		patch.Enabled = &enabled
	}
	return patch
}

// PurgeBefore deletes ledger rows dated before date. Repeating it is harmless.
func (s *OverrideService) PurgeBefore(ctx context.Context, date time.Time) (int64, error) {
	n, err := s.overrides.PurgeBefore(ctx, calendar.DateOf(date))
	if err != nil {
		return 0, fmt.Errorf("failed to purge overrides: %w", err)
	}
	metrics.OverridesPurgedTotal.Add(float64(n))
	logger.WithContext(ctx).Info("Purged past overrides", "before", calendar.FormatDate(date), "deleted", n)
	return n, nil
}

// CountBefore counts the rows PurgeBefore would delete
func (s *OverrideService) CountBefore(ctx context.Context, date time.Time) (int64, error) {
	n, err := s.overrides.CountBefore(ctx, calendar.DateOf(date))
	if err != nil {
		return 0, fmt.Errorf("failed to count overrides: %w", err)
	}
	return n, nil
}

// PurgeExpired deletes rows older than retentionDays before today
func (s *OverrideService) PurgeExpired(ctx context.Context, retentionDays int) (int64, error) {
	return s.PurgeBefore(ctx, s.RetentionBoundary(retentionDays))
}

// RetentionBoundary returns the first date kept when purging with retentionDays
func (s *OverrideService) RetentionBoundary(retentionDays int) time.Time {
	if retentionDays < 0 {
		retentionDays = 0
	}
	return s.cutoff.Today().AddDate(0, 0, -retentionDays)
}

func validatePatch(p models.OverridePatch) error {
	if p.Quantity != nil && *p.Quantity < 0 {
		return apperrors.InvalidInput("quantity must not be negative")
	}
	if p.PriceOverride != nil && p.PriceOverride.IsNegative() {
		return apperrors.InvalidInput("price override must not be negative")
	}
	if p.NameOverride != nil && strings.TrimSpace(*p.NameOverride) == "" {
		return apperrors.InvalidInput("name override must not be blank, use clear_name_override")
	}
	return nil
}
