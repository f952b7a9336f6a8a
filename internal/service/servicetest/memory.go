// Package servicetest provides an in-memory implementation of the service
// stores for tests. All state sits behind one mutex, so the conditional
// decrement is atomic like its SQL counterpart.
package servicetest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	apperrors "stadiumtix/internal/errors"
	"stadiumtix/internal/models"
)

type txKey struct{}

// Store is the shared in-memory state. Its fields satisfy the service store interfaces.
type Store struct {
	mu   sync.Mutex
	txMu sync.Mutex
	err  error

	nextTicketID   int64
	nextOverrideID int64
	nextRuleID     int64

	tickets    map[int64]models.TicketDefinition
	overrides  map[string]models.DateOverride
	rules      map[int64]models.DiscountRule
	generation map[int64]models.GenerationState

	Tickets    *Tickets
	Overrides  *Overrides
	Discounts  *Discounts
	Generation *Generation
}

func New() *Store {
	s := &Store{
		tickets:    make(map[int64]models.TicketDefinition),
		overrides:  make(map[string]models.DateOverride),
		rules:      make(map[int64]models.DiscountRule),
		generation: make(map[int64]models.GenerationState),
	}
	s.Tickets = &Tickets{s}
	s.Overrides = &Overrides{s}
	s.Discounts = &Discounts{s}
	s.Generation = &Generation{s}
	return s
}

// FailWith makes every subsequent store call return err; nil restores normal operation
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// WithTx serializes transactions, which is what the row lock on the generation
// state gives the SQL implementation. Writes are not rolled back on error.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return fn(context.WithValue(ctx, txKey{}, true))
}

// AddTicket seeds a ticket definition and returns it with its id
func (s *Store) AddTicket(t models.TicketDefinition) models.TicketDefinition {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextTicketID++
	t.ID = s.nextTicketID
	s.tickets[t.ID] = t
	return t
}

// Override returns a snapshot of a ledger row
func (s *Store) Override(key models.OverrideKey) (models.DateOverride, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.overrides[overrideKey(key)]
	return o, ok
}

// OverrideCount returns the number of ledger rows
func (s *Store) OverrideCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.overrides)
}

// SpecialCount returns the number of special tickets of a stadium on date
func (s *Store) SpecialCount(stadiumID int64, date time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.tickets {
		if t.StadiumID == stadiumID && t.Kind == models.KindSpecial && sameDate(t.Date, date) {
			n++
		}
	}
	return n
}

func overrideKey(k models.OverrideKey) string {
	return fmt.Sprintf("%d/%d/%s/%s", k.StadiumID, k.TicketID, k.Kind, k.Date.Format(models.DateLayout))
}

func sameDate(d *time.Time, date time.Time) bool {
	return d != nil && d.Format(models.DateLayout) == date.Format(models.DateLayout)
}

func sortTickets(ts []models.TicketDefinition) {
	sort.Slice(ts, func(i, j int) bool {
		if ts[i].DisplayOrder != ts[j].DisplayOrder {
			return ts[i].DisplayOrder < ts[j].DisplayOrder
		}
		return ts[i].ID < ts[j].ID
	})
}

// Tickets implements service.TicketStore
type Tickets struct{ s *Store }

func (r *Tickets) Create(_ context.Context, t *models.TicketDefinition) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.err != nil {
		return r.s.err
	}
	r.s.nextTicketID++
	t.ID = r.s.nextTicketID
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	r.s.tickets[t.ID] = *t
	return nil
}

func (r *Tickets) GetByID(_ context.Context, id int64) (*models.TicketDefinition, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.err != nil {
		return nil, r.s.err
	}
	t, ok := r.s.tickets[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (r *Tickets) GetByIDs(_ context.Context, ids []int64) ([]models.TicketDefinition, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.err != nil {
		return nil, r.s.err
	}
	var result []models.TicketDefinition
	for _, id := range ids {
		if t, ok := r.s.tickets[id]; ok {
			result = append(result, t)
		}
	}
	return result, nil
}

func (r *Tickets) ListByStadium(_ context.Context, stadiumID int64, kind models.TicketKind) ([]models.TicketDefinition, error) {
	return r.filter(func(t models.TicketDefinition) bool {
		return t.StadiumID == stadiumID && (kind == "" || t.Kind == kind)
	})
}

func (r *Tickets) ListRegularForWeekday(_ context.Context, stadiumID int64, weekday time.Weekday) ([]models.TicketDefinition, error) {
	return r.filter(func(t models.TicketDefinition) bool {
		if t.StadiumID != stadiumID || t.Kind != models.KindRegular {
			return false
		}
		for _, wd := range t.Weekdays {
			if wd == int64(weekday) {
				return true
			}
		}
		return false
	})
}

func (r *Tickets) ListSpecialForDate(_ context.Context, stadiumID int64, date time.Time) ([]models.TicketDefinition, error) {
	return r.filter(func(t models.TicketDefinition) bool {
		return t.StadiumID == stadiumID && t.Kind == models.KindSpecial && sameDate(t.Date, date)
	})
}

func (r *Tickets) filter(keep func(models.TicketDefinition) bool) ([]models.TicketDefinition, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.err != nil {
		return nil, r.s.err
	}
	var result []models.TicketDefinition
	for _, t := range r.s.tickets {
		if keep(t) {
			result = append(result, t)
		}
	}
	sortTickets(result)
	return result, nil
}

func (r *Tickets) Update(_ context.Context, t *models.TicketDefinition) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.err != nil {
		return r.s.err
	}
	if _, ok := r.s.tickets[t.ID]; !ok {
		return apperrors.ErrTicketNotFound
	}
	t.UpdatedAt = time.Now()
	r.s.tickets[t.ID] = *t
	return nil
}

func (r *Tickets) Delete(_ context.Context, id int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.err != nil {
		return false, r.s.err
	}
	if _, ok := r.s.tickets[id]; !ok {
		return false, nil
	}
	delete(r.s.tickets, id)
	for k, o := range r.s.overrides {
		if o.TicketID == id {
			delete(r.s.overrides, k)
		}
	}
	for k, rule := range r.s.rules {
		if rule.TicketID == id {
			delete(r.s.rules, k)
		}
	}
	return true, nil
}

// Overrides implements service.OverrideStore
type Overrides struct{ s *Store }

func (r *Overrides) GetOrCreate(_ context.Context, key models.OverrideKey) (*models.DateOverride, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.err != nil {
		return nil, r.s.err
	}
	o, err := r.materialize(key)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// materialize must be called with the lock held
func (r *Overrides) materialize(key models.OverrideKey) (models.DateOverride, error) {
	k := overrideKey(key)
	if o, ok := r.s.overrides[k]; ok {
		return o, nil
	}
	t, ok := r.s.tickets[key.TicketID]
	if !ok || t.StadiumID != key.StadiumID || t.Kind != key.Kind {
		return models.DateOverride{}, apperrors.ErrTicketNotFound
	}
	r.s.nextOverrideID++
	now := time.Now()
	o := models.DateOverride{
		ID:              r.s.nextOverrideID,
		StadiumID:       key.StadiumID,
		TicketID:        key.TicketID,
		Kind:            key.Kind,
		Date:            key.Date,
		Quantity:        t.BaseQuantity,
		InitialQuantity: t.BaseQuantity,
		Enabled:         true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	r.s.overrides[k] = o
	return o, nil
}

func (r *Overrides) EnsureForDate(_ context.Context, stadiumID int64, date time.Time, ticketIDs []int64) (map[int64]*models.DateOverride, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.err != nil {
		return nil, r.s.err
	}
	result := make(map[int64]*models.DateOverride, len(ticketIDs))
	for _, id := range ticketIDs {
		t, ok := r.s.tickets[id]
		if !ok || t.StadiumID != stadiumID {
			continue
		}
		o, err := r.materialize(models.OverrideKey{StadiumID: stadiumID, TicketID: id, Kind: t.Kind, Date: date})
		if err != nil {
			return nil, err
		}
		result[id] = &o
	}
	return result, nil
}

func (r *Overrides) CreateDisabled(_ context.Context, key models.OverrideKey, quantity int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.err != nil {
		return r.s.err
	}
	k := overrideKey(key)
	if _, ok := r.s.overrides[k]; ok {
		return nil
	}
	if _, ok := r.s.tickets[key.TicketID]; !ok {
		return apperrors.ErrTicketNotFound
	}
	r.s.nextOverrideID++
	r.s.overrides[k] = models.DateOverride{
		ID:              r.s.nextOverrideID,
		StadiumID:       key.StadiumID,
		TicketID:        key.TicketID,
		Kind:            key.Kind,
		Date:            key.Date,
		Quantity:        quantity,
		InitialQuantity: quantity,
		Enabled:         false,
	}
	return nil
}

func (r *Overrides) Update(_ context.Context, key models.OverrideKey, patch models.OverridePatch) (*models.DateOverride, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.err != nil {
		return nil, r.s.err
	}
	k := overrideKey(key)
	o, ok := r.s.overrides[k]
	if !ok {
		return nil, apperrors.ErrTicketNotFound
	}
	if patch.Enabled != nil {
		o.Enabled = *patch.Enabled
	}
	if patch.ClearNameOverride {
		o.NameOverride = nil
	} else if patch.NameOverride != nil {
		name := *patch.NameOverride
		o.NameOverride = &name
	}
	if patch.ClearPriceOverride {
		o.PriceOverride.Valid = false
	} else if patch.PriceOverride != nil {
		o.PriceOverride.Decimal = *patch.PriceOverride
		o.PriceOverride.Valid = true
	}
	if patch.Quantity != nil {
		o.Quantity = *patch.Quantity
	}
	o.UpdatedAt = time.Now()
	r.s.overrides[k] = o
	return &o, nil
}

func (r *Overrides) Decrement(_ context.Context, key models.OverrideKey, quantity int) (int, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.err != nil {
		return 0, false, r.s.err
	}
	k := overrideKey(key)
	o, ok := r.s.overrides[k]
	if !ok || !o.Enabled || o.Quantity < quantity {
		return 0, false, nil
	}
	o.Quantity -= quantity
	r.s.overrides[k] = o
	return o.Quantity, true, nil
}

func (r *Overrides) PurgeBefore(_ context.Context, date time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.err != nil {
		return 0, r.s.err
	}
	var n int64
	for k, o := range r.s.overrides {
		if o.Date.Before(date) {
			delete(r.s.overrides, k)
			n++
		}
	}
	return n, nil
}

func (r *Overrides) CountBefore(_ context.Context, date time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.err != nil {
		return 0, r.s.err
	}
	var n int64
	for _, o := range r.s.overrides {
		if o.Date.Before(date) {
			n++
		}
	}
	return n, nil
}

// Discounts implements service.DiscountStore
type Discounts struct{ s *Store }

func (r *Discounts) Create(_ context.Context, rule *models.DiscountRule) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.err != nil {
		return r.s.err
	}
	if _, ok := r.s.tickets[rule.TicketID]; !ok {
		return apperrors.ErrTicketNotFound
	}
	r.s.nextRuleID++
	rule.ID = r.s.nextRuleID
	rule.CreatedAt = time.Now()
	r.s.rules[rule.ID] = *rule
	return nil
}

func (r *Discounts) FindMatching(_ context.Context, stadiumID, ticketID int64, kind models.TicketKind, day, month int) (*models.DiscountRule, error) {
	rules, err := r.list(func(rule models.DiscountRule) bool {
		return rule.StadiumID == stadiumID && rule.TicketID == ticketID && rule.TicketKind == kind &&
			rule.DayOfMonth == day && rule.Month == month
	})
	if err != nil || len(rules) == 0 {
		return nil, err
	}
	return &rules[0], nil
}

func (r *Discounts) ListMatchingForDate(_ context.Context, stadiumID int64, day, month int) ([]models.DiscountRule, error) {
	return r.list(func(rule models.DiscountRule) bool {
		return rule.StadiumID == stadiumID && rule.DayOfMonth == day && rule.Month == month
	})
}

func (r *Discounts) List(_ context.Context, stadiumID, ticketID int64) ([]models.DiscountRule, error) {
	return r.list(func(rule models.DiscountRule) bool {
		return rule.StadiumID == stadiumID && (ticketID == 0 || rule.TicketID == ticketID)
	})
}

func (r *Discounts) Delete(_ context.Context, id int64) (*models.DiscountRule, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.err != nil {
		return nil, r.s.err
	}
	rule, ok := r.s.rules[id]
	if !ok {
		return nil, nil
	}
	delete(r.s.rules, id)
	return &rule, nil
}

// list returns matching rules, lowest id first
func (r *Discounts) list(keep func(models.DiscountRule) bool) ([]models.DiscountRule, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.err != nil {
		return nil, r.s.err
	}
	var result []models.DiscountRule
	for _, rule := range r.s.rules {
		if keep(rule) {
			result = append(result, rule)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// Generation implements service.GenerationStore
type Generation struct{ s *Store }

func (r *Generation) LockMonthKey(ctx context.Context, stadiumID int64) (string, error) {
	if ctx.Value(txKey{}) == nil {
		return "", fmt.Errorf("transaction required")
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.err != nil {
		return "", r.s.err
	}
	state, ok := r.s.generation[stadiumID]
	if !ok {
		state = models.GenerationState{StadiumID: stadiumID}
		r.s.generation[stadiumID] = state
	}
	return state.MonthKey, nil
}

func (r *Generation) SaveMonthKey(_ context.Context, stadiumID int64, monthKey string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.err != nil {
		return r.s.err
	}
	now := time.Now()
	r.s.generation[stadiumID] = models.GenerationState{StadiumID: stadiumID, MonthKey: monthKey, GeneratedAt: &now}
	return nil
}

func (r *Generation) Get(_ context.Context, stadiumID int64) (*models.GenerationState, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.err != nil {
		return nil, r.s.err
	}
	state, ok := r.s.generation[stadiumID]
	if !ok {
		return nil, nil
	}
	return &state, nil
}
