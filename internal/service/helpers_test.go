package service_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"stadiumtix/internal/calendar"
	"stadiumtix/internal/models"
	"stadiumtix/internal/service"
	"stadiumtix/internal/service/servicetest"
)

const (
	stadiumID = int64(1)
	otherID   = int64(2)
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) Publish(subject string, _ interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, subject)
	return nil
}

func (p *recordingPublisher) subjects() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

type memoryCache struct {
	mu             sync.Mutex
	entries        map[string][]models.Offer
	dateVersion    map[string]int
	stadiumVersion map[int64]int
	invalidated    []string

	// beforeSet runs once before the next Set, outside the lock
	beforeSet func()
}

func newMemoryCache() *memoryCache {
	return &memoryCache{
		entries:        make(map[string][]models.Offer),
		dateVersion:    make(map[string]int),
		stadiumVersion: make(map[int64]int),
	}
}

func (c *memoryCache) key(stadiumID int64, date string) string {
	return fmt.Sprintf("%d:%s", stadiumID, date)
}

func (c *memoryCache) Get(_ context.Context, stadiumID int64, date string) ([]models.Offer, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	offers, ok := c.entries[c.key(stadiumID, date)]
	return offers, ok, nil
}

func (c *memoryCache) version(stadiumID int64, date string) string {
	return fmt.Sprintf("%d/%d", c.stadiumVersion[stadiumID], c.dateVersion[c.key(stadiumID, date)])
}

func (c *memoryCache) Version(_ context.Context, stadiumID int64, date string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version(stadiumID, date), nil
}

func (c *memoryCache) Set(_ context.Context, stadiumID int64, date, version string, offers []models.Offer) error {
	c.mu.Lock()
	hook := c.beforeSet
	c.beforeSet = nil
	c.mu.Unlock()
	if hook != nil {
		hook()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.version(stadiumID, date) != version {
		return nil
	}
	c.entries[c.key(stadiumID, date)] = offers
	return nil
}

func (c *memoryCache) InvalidateDate(_ context.Context, stadiumID int64, date string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, c.key(stadiumID, date))
	c.dateVersion[c.key(stadiumID, date)]++
	c.invalidated = append(c.invalidated, date)
	return nil
}

func (c *memoryCache) InvalidateStadium(_ context.Context, stadiumID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string][]models.Offer)
	c.stadiumVersion[stadiumID]++
	c.invalidated = append(c.invalidated, "*")
	return nil
}

type fixture struct {
	store     *servicetest.Store
	services  *service.Services
	cutoff    *calendar.Cutoff
	publisher *recordingPublisher
	cache     *memoryCache
	now       time.Time
}

func almaty(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Almaty")
	require.NoError(t, err)
	return loc
}

// newFixture builds the services over an in-memory store; now is read through
// f.now, so tests may move the clock between calls.
func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()
	f := &fixture{
		store:     servicetest.New(),
		publisher: &recordingPublisher{},
		cache:     newMemoryCache(),
		now:       now,
	}

	cutoff, err := calendar.NewCutoff(calendar.ClockFunc(func() time.Time { return f.now }), now.Location(), "20:30")
	require.NoError(t, err)
	f.cutoff = cutoff

	stores := service.Stores{
		Tickets:    f.store.Tickets,
		Overrides:  f.store.Overrides,
		Discounts:  f.store.Discounts,
		Generation: f.store.Generation,
		Tx:         f.store,
	}
	f.services = service.NewServices(stores, cutoff, f.cache, f.publisher, service.ReplenishmentOptions{StadiumID: stadiumID})
	return f
}

func price(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func date(s string) time.Time {
	d, err := calendar.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (f *fixture) regular(name string, qty int, basePrice string, weekdays ...int64) models.TicketDefinition {
	return f.store.AddTicket(models.TicketDefinition{
		StadiumID:    stadiumID,
		Kind:         models.KindRegular,
		Name:         name,
		BasePrice:    price(basePrice),
		BaseQuantity: qty,
		Weekdays:     pq.Int64Array(weekdays),
	})
}

func (f *fixture) special(name string, qty int, basePrice string, on string) models.TicketDefinition {
	d := date(on)
	return f.store.AddTicket(models.TicketDefinition{
		StadiumID:    stadiumID,
		Kind:         models.KindSpecial,
		Name:         name,
		BasePrice:    price(basePrice),
		BaseQuantity: qty,
		Date:         &d,
	})
}

func reserveReq(t models.TicketDefinition, on string, qty int) *models.ReserveRequest {
	return &models.ReserveRequest{
		StadiumID: t.StadiumID,
		TicketID:  t.ID,
		Kind:      string(t.Kind),
		Date:      on,
		Quantity:  qty,
	}
}

func keyOf(t models.TicketDefinition, on string) models.OverrideKey {
	return models.OverrideKey{StadiumID: t.StadiumID, TicketID: t.ID, Kind: t.Kind, Date: date(on)}
}
