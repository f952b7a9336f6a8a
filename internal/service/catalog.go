package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/lib/pq"

	"stadiumtix/internal/calendar"
	apperrors "stadiumtix/internal/errors"
	"stadiumtix/internal/logger"
	"stadiumtix/internal/models"
)

// CatalogService администрирование типов билетов. Изменение base_quantity
// не затрагивает уже материализованные строки учета.
type CatalogService struct {
	tickets   TicketStore
	cache     OffersCache
	publisher EventPublisher
}

func NewCatalogService(tickets TicketStore, cache OffersCache, publisher EventPublisher) *CatalogService {
	return &CatalogService{tickets: tickets, cache: cache, publisher: publisher}
}

func (s *CatalogService) Create(ctx context.Context, req *models.CreateTicketRequest) (*models.TicketDefinition, error) {
	t := &models.TicketDefinition{
		StadiumID:    req.StadiumID,
		Kind:         models.TicketKind(strings.ToLower(req.Kind)),
		Name:         strings.TrimSpace(req.Name),
		BasePrice:    req.BasePrice,
		BaseQuantity: req.BaseQuantity,
		DisplayOrder: req.DisplayOrder,
	}
	if req.Weekdays != nil {
		t.Weekdays = normalizeWeekdays(req.Weekdays)
	}
	if req.Date != "" {
		d, err := calendar.ParseDate(req.Date)
		if err != nil {
			return nil, err
		}
		t.Date = &d
	}

	if err := validateDefinition(t); err != nil {
		return nil, err
	}
	if err := s.tickets.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to create ticket: %w", err)
	}

	s.changed(ctx, models.EventTicketCreated, t)
	logger.WithContext(ctx).Info("Ticket created", "ticket_id", t.ID, "stadium_id", t.StadiumID, "kind", t.Kind)
	return t, nil
}

func (s *CatalogService) Get(ctx context.Context, id int64) (*models.TicketDefinition, error) {
	t, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}
	if t == nil {
		return nil, apperrors.ErrTicketNotFound
	}
	return t, nil
}

func (s *CatalogService) List(ctx context.Context, stadiumID int64, kind string) ([]models.TicketDefinition, error) {
	if stadiumID <= 0 {
		return nil, apperrors.InvalidInput("stadium id must be positive")
	}
	k := models.TicketKind(strings.ToLower(kind))
	if k != "" && !k.Valid() {
		return nil, apperrors.InvalidInput("unknown ticket kind %q", kind)
	}

	tickets, err := s.tickets.ListByStadium(ctx, stadiumID, k)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	if tickets == nil {
		tickets = []models.TicketDefinition{}
	}
	return tickets, nil
}

// Update applies a partial change. Kind and stadium are immutable.
func (s *CatalogService) Update(ctx context.Context, id int64, req *models.UpdateTicketRequest) (*models.TicketDefinition, error) {
	t, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		t.Name = strings.TrimSpace(*req.Name)
	}
	if req.BasePrice != nil {
		t.BasePrice = *req.BasePrice
	}
	if req.BaseQuantity != nil {
		t.BaseQuantity = *req.BaseQuantity
	}
	if req.DisplayOrder != nil {
		t.DisplayOrder = *req.DisplayOrder
	}
	if req.Weekdays != nil {
		t.Weekdays = normalizeWeekdays(req.Weekdays)
	}
	if req.Date != nil {
		d, err := calendar.ParseDate(*req.Date)
		if err != nil {
			return nil, err
		}
		t.Date = &d
	}

	if err := validateDefinition(t); err != nil {
		return nil, err
	}
	if err := s.tickets.Update(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to update ticket: %w", err)
	}

	s.changed(ctx, models.EventTicketUpdated, t)
	return t, nil
}

// Delete removes the definition together with its ledger rows and discount rules
func (s *CatalogService) Delete(ctx context.Context, id int64) error {
	t, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	deleted, err := s.tickets.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete ticket: %w", err)
	}
	if !deleted {
		return apperrors.ErrTicketNotFound
	}

	invalidate(ctx, s.cache, t.StadiumID, "")
	publish(ctx, s.publisher, models.EventTicketDeleted, models.TicketChangedEvent{
		TicketID:  t.ID,
		StadiumID: t.StadiumID,
		Timestamp: nowUTC(),
	})
	logger.WithContext(ctx).Info("Ticket deleted", "ticket_id", t.ID, "stadium_id", t.StadiumID)
	return nil
}

func (s *CatalogService) changed(ctx context.Context, subject string, t *models.TicketDefinition) {
	invalidate(ctx, s.cache, t.StadiumID, "")
	publish(ctx, s.publisher, subject, models.TicketChangedEvent{
		TicketID:  t.ID,
		StadiumID: t.StadiumID,
		Ticket:    models.NewTicketResponse(t),
		Timestamp: nowUTC(),
	})
}

func validateDefinition(t *models.TicketDefinition) error {
	switch {
	case t.StadiumID <= 0:
		return apperrors.InvalidInput("stadium id must be positive")
	case !t.Kind.Valid():
		return apperrors.InvalidInput("unknown ticket kind %q", t.Kind)
	case t.Name == "":
		return apperrors.InvalidInput("name is required")
	case t.BasePrice.IsNegative():
		return apperrors.InvalidInput("base price must not be negative")
	case t.BaseQuantity < 0:
		return apperrors.InvalidInput("base quantity must not be negative")
	}

	switch t.Kind {
	case models.KindRegular:
		if len(t.Weekdays) == 0 {
			return apperrors.InvalidInput("regular ticket needs at least one weekday")
		}
		for _, wd := range t.Weekdays {
			if wd < 0 || wd > 6 {
				return apperrors.InvalidInput("weekday %d out of range 0..6", wd)
			}
		}
		if t.Date != nil {
			return apperrors.InvalidInput("regular ticket cannot have a date")
		}
	case models.KindSpecial:
		if t.Date == nil {
			return apperrors.InvalidInput("special ticket needs a date")
		}
		if len(t.Weekdays) > 0 {
			return apperrors.InvalidInput("special ticket cannot have weekdays")
		}
	}
	return nil
}

func normalizeWeekdays(days []int) pq.Int64Array {
	seen := make(map[int64]struct{}, len(days))
	result := pq.Int64Array{}
	for _, d := range days {
		wd := int64(d)
		if _, ok := seen[wd]; ok {
			continue
		}
		seen[wd] = struct{}{}
		result = append(result, wd)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}
