package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"stadiumtix/internal/calendar"
	apperrors "stadiumtix/internal/errors"
	"stadiumtix/internal/logger"
	"stadiumtix/internal/metrics"
	"stadiumtix/internal/models"
)

// ReservationService takes units from the per-date ledger. There is no
// release operation: a successful reservation is final.
type ReservationService struct {
	tickets   TicketStore
	overrides OverrideStore
	cutoff    *calendar.Cutoff
	cache     OffersCache
	publisher EventPublisher
}

func NewReservationService(tickets TicketStore, overrides OverrideStore, cutoff *calendar.Cutoff, cache OffersCache, publisher EventPublisher) *ReservationService {
	return &ReservationService{
		tickets:   tickets,
		overrides: overrides,
		cutoff:    cutoff,
		cache:     cache,
		publisher: publisher,
	}
}

// Reserve atomically takes req.Quantity units of a ticket on a date. It fails
// with ErrInsufficientInventory when the remaining stock is smaller, the row is
// disabled, or a concurrent reservation got there first.
func (s *ReservationService) Reserve(ctx context.Context, req *models.ReserveRequest) (*models.ReserveResponse, error) {
	resp, err := s.reserve(ctx, req)
	metrics.ReservationsTotal.WithLabelValues(reserveResult(err)).Inc()
	return resp, err
}

func (s *ReservationService) reserve(ctx context.Context, req *models.ReserveRequest) (*models.ReserveResponse, error) {
	kind := models.TicketKind(strings.ToLower(req.Kind))
	switch {
	case req.StadiumID <= 0 || req.TicketID <= 0:
		return nil, apperrors.InvalidInput("stadium and ticket ids must be positive")
	case !kind.Valid():
		return nil, apperrors.InvalidInput("unknown ticket kind %q", req.Kind)
	case req.Quantity <= 0:
		return nil, apperrors.InvalidInput("quantity must be positive")
	}
	d, err := calendar.ParseDate(req.Date)
	if err != nil {
		return nil, err
	}

	ticket, err := s.tickets.GetByID(ctx, req.TicketID)
	if err != nil {
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}
	if ticket == nil || ticket.StadiumID != req.StadiumID || ticket.Kind != kind {
		return nil, fmt.Errorf("%w: ticket %d (%s) of stadium %d",
			apperrors.ErrTicketNotFound, req.TicketID, kind, req.StadiumID)
	}
	if !ticket.SoldOn(d) {
		return nil, apperrors.InvalidInput("ticket %d is not sold on %s", ticket.ID, req.Date)
	}

	if !s.cutoff.CanPurchase(d) {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrCutoffExceeded, req.Date)
	}

	key := models.OverrideKey{StadiumID: req.StadiumID, TicketID: req.TicketID, Kind: kind, Date: d}
	if _, err := s.overrides.GetOrCreate(ctx, key); err != nil {
		return nil, fmt.Errorf("failed to materialize inventory: %w", err)
	}

	remaining, ok, err := s.overrides.Decrement(ctx, key, req.Quantity)
	if err != nil {
		return nil, fmt.Errorf("failed to reserve: %w", err)
	}
	if !ok {
		logger.WithContext(ctx).Info("Reservation rejected",
			"stadium_id", req.StadiumID,
			"ticket_id", req.TicketID,
			"date", req.Date,
			"quantity", req.Quantity)
		return nil, fmt.Errorf("%w: ticket %d on %s", apperrors.ErrInsufficientInventory, req.TicketID, req.Date)
	}

	date := calendar.FormatDate(d)
	invalidate(ctx, s.cache, req.StadiumID, date)
	metrics.ReservedUnitsTotal.Add(float64(req.Quantity))

	publish(ctx, s.publisher, models.EventTicketReserved, models.TicketReservedEvent{
		StadiumID: req.StadiumID,
		TicketID:  req.TicketID,
		Kind:      kind,
		Date:      date,
		Quantity:  req.Quantity,
		Remaining: remaining,
		Timestamp: nowUTC(),
	})

	logger.WithContext(ctx).Info("Tickets reserved",
		"stadium_id", req.StadiumID,
		"ticket_id", req.TicketID,
		"date", date,
		"quantity", req.Quantity,
		"remaining", remaining)

	return &models.ReserveResponse{
		Reserved:  true,
		StadiumID: req.StadiumID,
		TicketID:  req.TicketID,
		Kind:      kind,
		Date:      date,
		Quantity:  req.Quantity,
		Remaining: remaining,
	}, nil
}

func reserveResult(err error) string {
	switch {
	case err == nil:
		return metrics.ReserveResultReserved
	case errors.Is(err, apperrors.ErrInsufficientInventory):
		return metrics.ReserveResultInsufficient
	case errors.Is(err, apperrors.ErrCutoffExceeded):
		return metrics.ReserveResultCutoff
	case errors.Is(err, apperrors.ErrInvalidInput):
		return metrics.ReserveResultInvalid
	case errors.Is(err, apperrors.ErrTicketNotFound):
		return metrics.ReserveResultNotFound
	default:
		return metrics.ReserveResultError
	}
}
