package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"stadiumtix/internal/calendar"
	apperrors "stadiumtix/internal/errors"
	"stadiumtix/internal/logger"
	"stadiumtix/internal/models"
)

// DiscountService resolves calendar discounts. Rules match on (day, month) in
// any year; when several match, the lowest rule id wins.
type DiscountService struct {
	rules   DiscountStore
	tickets TicketStore
	cache   OffersCache
}

func NewDiscountService(rules DiscountStore, tickets TicketStore, cache OffersCache) *DiscountService {
	return &DiscountService{rules: rules, tickets: tickets, cache: cache}
}

// FindDiscount returns the rule applying to the ticket on date, or nil
func (s *DiscountService) FindDiscount(ctx context.Context, stadiumID, ticketID int64, kind models.TicketKind, date time.Time) (*models.DiscountRule, error) {
	rule, err := s.rules.FindMatching(ctx, stadiumID, ticketID, kind, date.Day(), int(date.Month()))
	if err != nil {
		return nil, fmt.Errorf("failed to find discount: %w", err)
	}
	return rule, nil
}

// ForDate resolves the applicable rule of every ticket of a stadium on date
func (s *DiscountService) ForDate(ctx context.Context, stadiumID int64, date time.Time) (map[models.TicketRef]*models.DiscountRule, error) {
	rules, err := s.rules.ListMatchingForDate(ctx, stadiumID, date.Day(), int(date.Month()))
	if err != nil {
		return nil, fmt.Errorf("failed to list discounts: %w", err)
	}

	result := make(map[models.TicketRef]*models.DiscountRule, len(rules))
	for i := range rules {
		rule := &rules[i]
		ref := models.TicketRef{ID: rule.TicketID, Kind: rule.TicketKind}
		if current, ok := result[ref]; !ok || rule.ID < current.ID {
			result[ref] = rule
		}
	}
	return result, nil
}

func (s *DiscountService) Create(ctx context.Context, req *models.CreateDiscountRequest) (*models.DiscountRule, error) {
	kind := models.TicketKind(strings.ToLower(req.TicketKind))
	if err := validateDiscount(req, kind); err != nil {
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

	rule := &models.DiscountRule{
		StadiumID:     req.StadiumID,
		TicketID:      req.TicketID,
		TicketKind:    kind,
		DayOfMonth:    req.DayOfMonth,
		Month:         req.Month,
		DiscountPrice: req.DiscountPrice,
	}
	if err := s.rules.Create(ctx, rule); err != nil {
		return nil, fmt.Errorf("failed to create discount: %w", err)
	}

	invalidate(ctx, s.cache, rule.StadiumID, "")
	logger.WithContext(ctx).Info("Discount rule created",
		"rule_id", rule.ID,
		"stadium_id", rule.StadiumID,
		"ticket_id", rule.TicketID,
		"day", rule.DayOfMonth,
		"month", rule.Month)

	return rule, nil
}

func (s *DiscountService) List(ctx context.Context, stadiumID, ticketID int64) ([]models.DiscountRule, error) {
	if stadiumID <= 0 {
		return nil, apperrors.InvalidInput("stadium id must be positive")
	}
	rules, err := s.rules.List(ctx, stadiumID, ticketID)
	if err != nil {
		return nil, fmt.Errorf("failed to list discounts: %w", err)
	}
	if rules == nil {
		rules = []models.DiscountRule{}
	}
	return rules, nil
}

func (s *DiscountService) Delete(ctx context.Context, id int64) error {
	rule, err := s.rules.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete discount: %w", err)
	}
	if rule == nil {
		return apperrors.ErrDiscountNotFound
	}
	invalidate(ctx, s.cache, rule.StadiumID, "")
	return nil
}

// leapYear is used to accept February 29 rules
const leapYear = 2024

func validateDiscount(req *models.CreateDiscountRequest, kind models.TicketKind) error {
	switch {
	case req.StadiumID <= 0 || req.TicketID <= 0:
		return apperrors.InvalidInput("stadium and ticket ids must be positive")
	case !kind.Valid():
		return apperrors.InvalidInput("unknown ticket kind %q", req.TicketKind)
	case req.Month < 1 || req.Month > 12:
		return apperrors.InvalidInput("month must be within 1..12")
	case req.DayOfMonth < 1 || req.DayOfMonth > calendar.DaysInMonth(leapYear, time.Month(req.Month)):
		return apperrors.InvalidInput("day %d does not exist in month %d", req.DayOfMonth, req.Month)
	case req.DiscountPrice.IsNegative():
		return apperrors.InvalidInput("discount price must not be negative")
	}
	return nil
}
