package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"stadiumtix/internal/calendar"
	apperrors "stadiumtix/internal/errors"
	"stadiumtix/internal/logger"
	"stadiumtix/internal/metrics"
	"stadiumtix/internal/models"
)

// DefaultMaxPerDate предел специальных билетов на одну дату
const DefaultMaxPerDate = 8

// TicketTemplate describes a special ticket replenishment may create
type TicketTemplate struct {
	Name     string
	Price    decimal.Decimal
	Quantity int
}

// DefaultRoster is ordered from the most to the least expensive tier; the
// per-date cap decides how far down the roster a date gets.
var DefaultRoster = []TicketTemplate{
	{Name: "VIP Lounge", Price: decimal.NewFromInt(60000), Quantity: 20},
	{Name: "Premium Box", Price: decimal.NewFromInt(45000), Quantity: 24},
	{Name: "Gold Tribune", Price: decimal.NewFromInt(30000), Quantity: 80},
	{Name: "Silver Tribune", Price: decimal.NewFromInt(20000), Quantity: 120},
	{Name: "Bronze Tribune", Price: decimal.NewFromInt(15000), Quantity: 150},
	{Name: "Family Zone", Price: decimal.NewFromInt(12000), Quantity: 60},
	{Name: "Fan Zone", Price: decimal.NewFromInt(9000), Quantity: 200},
	{Name: "Student Sector", Price: decimal.NewFromInt(6000), Quantity: 100},
	{Name: "Standing", Price: decimal.NewFromInt(4000), Quantity: 300},
	{Name: "Restricted View", Price: decimal.NewFromInt(2500), Quantity: 80},
}

// ReplenishmentOptions настройки ежемесячной генерации
type ReplenishmentOptions struct {
	StadiumID  int64
	MaxPerDate int
	Roster     []TicketTemplate
}

// ReplenishmentService creates special tickets for the next month, at most once
// per calendar month and only for the designated stadium.
type ReplenishmentService struct {
	tickets    TicketStore
	overrides  OverrideStore
	generation GenerationStore
	tx         Transactor
	cutoff     *calendar.Cutoff
	cache      OffersCache
	publisher  EventPublisher
	opts       ReplenishmentOptions
}

func NewReplenishmentService(stores Stores, cutoff *calendar.Cutoff, cache OffersCache, publisher EventPublisher, opts ReplenishmentOptions) *ReplenishmentService {
	if opts.MaxPerDate <= 0 {
		opts.MaxPerDate = DefaultMaxPerDate
	}
	if len(opts.Roster) == 0 {
		opts.Roster = DefaultRoster
	}
	return &ReplenishmentService{
		tickets:    stores.Tickets,
		overrides:  stores.Overrides,
		generation: stores.Generation,
		tx:         stores.Tx,
		cutoff:     cutoff,
		cache:      cache,
		publisher:  publisher,
		opts:       opts,
	}
}

// StadiumID returns the designated stadium
func (s *ReplenishmentService) StadiumID() int64 {
	return s.opts.StadiumID
}

// RunMonthlyGeneration generates next month's special tickets unless this
// calendar month was already handled. The month key is read under a row lock
// and written in the same transaction as the tickets.
func (s *ReplenishmentService) RunMonthlyGeneration(ctx context.Context, stadiumID int64) (*models.GenerationResult, error) {
	if err := s.checkStadium(stadiumID); err != nil {
		return nil, err
	}

	currentKey := s.cutoff.CurrentMonthKey()
	year, month := calendar.NextMonth(s.cutoff.Now())

	var result *models.GenerationResult
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		stored, err := s.generation.LockMonthKey(ctx, stadiumID)
		if err != nil {
			return err
		}
		if stored == currentKey {
			result = &models.GenerationResult{
				StadiumID: stadiumID,
				Month:     monthKey(year, month),
				Skipped:   true,
				Reason:    fmt.Sprintf("already generated in %s", currentKey),
			}
			return nil
		}

		r, err := s.generateMonth(ctx, stadiumID, year, month, true)
		if err != nil {
			return err
		}
		if err := s.generation.SaveMonthKey(ctx, stadiumID, currentKey); err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		metrics.ReplenishmentRunsTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("failed to run monthly generation: %w", err)
	}

	if result.Skipped {
		metrics.ReplenishmentRunsTotal.WithLabelValues("skipped").Inc()
		logger.WithContext(ctx).Debug("Monthly generation skipped", "stadium_id", stadiumID, "month_key", currentKey)
		return result, nil
	}

	metrics.ReplenishmentRunsTotal.WithLabelValues("generated").Inc()
	s.afterGeneration(ctx, result)
	return result, nil
}

// GenerateForMonth runs the per-date pass for an explicit month without
// touching the stored month key. Repeated runs create nothing new.
func (s *ReplenishmentService) GenerateForMonth(ctx context.Context, stadiumID int64, year int, month time.Month) (*models.GenerationResult, error) {
	if err := s.checkStadium(stadiumID); err != nil {
		return nil, err
	}
	if month < time.January || month > time.December {
		return nil, apperrors.InvalidInput("month must be within 1..12")
	}

	var result *models.GenerationResult
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		r, err := s.generateMonth(ctx, stadiumID, year, month, true)
		result = r
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate month: %w", err)
	}

	s.afterGeneration(ctx, result)
	return result, nil
}

// PlanForMonth reports what GenerateForMonth would create without writing
func (s *ReplenishmentService) PlanForMonth(ctx context.Context, stadiumID int64, year int, month time.Month) (*models.GenerationResult, error) {
	if err := s.checkStadium(stadiumID); err != nil {
		return nil, err
	}
	result, err := s.generateMonth(ctx, stadiumID, year, month, false)
	if err != nil {
		return nil, fmt.Errorf("failed to plan month: %w", err)
	}
	result.DryRun = true
	return result, nil
}

// PlanNextMonth is the dry run of RunMonthlyGeneration: it plans the month the
// scheduled run would fill and leaves the month key untouched.
func (s *ReplenishmentService) PlanNextMonth(ctx context.Context, stadiumID int64) (*models.GenerationResult, error) {
	year, month := calendar.NextMonth(s.cutoff.Now())
	return s.PlanForMonth(ctx, stadiumID, year, month)
}

func (s *ReplenishmentService) Status(ctx context.Context, stadiumID int64) (*models.GenerationState, error) {
	state, err := s.generation.Get(ctx, stadiumID)
	if err != nil {
		return nil, fmt.Errorf("failed to get generation state: %w", err)
	}
	if state == nil {
		state = &models.GenerationState{StadiumID: stadiumID}
	}
	return state, nil
}

func (s *ReplenishmentService) checkStadium(stadiumID int64) error {
	if s.opts.StadiumID <= 0 || stadiumID != s.opts.StadiumID {
		return apperrors.InvalidInput("stadium %d is not eligible for replenishment", stadiumID)
	}
	return nil
}

func (s *ReplenishmentService) generateMonth(ctx context.Context, stadiumID int64, year int, month time.Month, apply bool) (*models.GenerationResult, error) {
	result := &models.GenerationResult{
		StadiumID: stadiumID,
		Month:     monthKey(year, month),
	}

	for _, d := range calendar.DatesInMonth(year, month) {
		dg, ids, err := s.generateDate(ctx, stadiumID, d, apply)
		if err != nil {
			return nil, err
		}
		result.Dates = append(result.Dates, dg)
		result.TotalCreated += dg.Created
		result.TicketIDs = append(result.TicketIDs, ids...)
	}
	return result, nil
}

// generateDate fills one date up to the cap, walking the roster from the
// richest tier and skipping names that already exist on that date.
func (s *ReplenishmentService) generateDate(ctx context.Context, stadiumID int64, d time.Time, apply bool) (models.DateGeneration, []int64, error) {
	dg := models.DateGeneration{Date: calendar.FormatDate(d)}

	existing, err := s.tickets.ListSpecialForDate(ctx, stadiumID, d)
	if err != nil {
		return dg, nil, err
	}

	names := make(map[string]struct{}, len(existing))
	distinct := make(map[int64]struct{}, len(existing))
	for _, t := range existing {
		names[nameKey(t.Name)] = struct{}{}
		distinct[t.ID] = struct{}{}
	}
	count := len(distinct)
	dg.Existing = count

	var created []int64
	for i, tpl := range s.opts.Roster {
		if count >= s.opts.MaxPerDate {
			dg.CapReached = true
			break
		}
		if _, ok := names[nameKey(tpl.Name)]; ok {
			continue
		}

		if apply {
			date := d
			t := &models.TicketDefinition{
				StadiumID:    stadiumID,
				Kind:         models.KindSpecial,
				Name:         tpl.Name,
				BasePrice:    tpl.Price,
				BaseQuantity: tpl.Quantity,
				DisplayOrder: i + 1,
				Date:         &date,
			}
			if err := s.tickets.Create(ctx, t); err != nil {
				return dg, nil, err
			}
			key := models.OverrideKey{StadiumID: stadiumID, TicketID: t.ID, Kind: models.KindSpecial, Date: d}
			if err := s.overrides.CreateDisabled(ctx, key, tpl.Quantity); err != nil {
				return dg, nil, err
			}
			created = append(created, t.ID)
		}

		names[nameKey(tpl.Name)] = struct{}{}
		count++
		dg.Created++
	}
	if count >= s.opts.MaxPerDate {
		dg.CapReached = true
	}
	dg.Skipped = len(s.opts.Roster) - dg.Created

	return dg, created, nil
}

func (s *ReplenishmentService) afterGeneration(ctx context.Context, result *models.GenerationResult) {
	metrics.ReplenishmentTicketsCreated.Add(float64(result.TotalCreated))
	logger.WithContext(ctx).Info("Monthly tickets generated",
		"stadium_id", result.StadiumID,
		"month", result.Month,
		"created", result.TotalCreated)

	if result.TotalCreated == 0 {
		return
	}
	invalidate(ctx, s.cache, result.StadiumID, "")
	publish(ctx, s.publisher, models.EventTicketsGenerated, models.TicketsGeneratedEvent{
		StadiumID: result.StadiumID,
		Month:     result.Month,
		TicketIDs: result.TicketIDs,
		Timestamp: nowUTC(),
	})
}

func monthKey(year int, month time.Month) string {
	return calendar.MonthKey(time.Date(year, month, 1, 0, 0, 0, 0, time.UTC))
}

func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
