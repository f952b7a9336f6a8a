package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stadiumtix/internal/calendar"
	apperrors "stadiumtix/internal/errors"
	"stadiumtix/internal/models"
	"stadiumtix/internal/search"
	"stadiumtix/internal/service"
	"stadiumtix/internal/service/servicetest"
)

type stubSearcher struct {
	params search.SearchParams
}

func (s *stubSearcher) Search(_ context.Context, params search.SearchParams) (*search.SearchResult, error) {
	s.params = params
	return &search.SearchResult{Total: 1, Tickets: []search.TicketDocument{{ID: 1, Name: "Fan Zone"}}}, nil
}

type testEnv struct {
	router   *gin.Engine
	store    *servicetest.Store
	searcher *stubSearcher
}

// Monday 2026-10-19, noon in Almaty
func setupRouter(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	loc, err := time.LoadLocation("Asia/Almaty")
	require.NoError(t, err)
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, loc)
	cutoff, err := calendar.NewCutoff(calendar.ClockFunc(func() time.Time { return now }), loc, calendar.DefaultCutoff)
	require.NoError(t, err)

	store := servicetest.New()
	services := service.NewServices(service.Stores{
		Tickets:    store.Tickets,
		Overrides:  store.Overrides,
		Discounts:  store.Discounts,
		Generation: store.Generation,
		Tx:         store,
	}, cutoff, nil, nil, service.ReplenishmentOptions{StadiumID: 1})

	searcher := &stubSearcher{}
	h := NewHandlers(services, searcher)

	r := gin.New()
	api := r.Group("/api")
	h.Register(api, api.Group("/admin"))

	return &testEnv{router: r, store: store, searcher: searcher}
}

func (e *testEnv) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) fridayTicket(qty int) models.TicketDefinition {
	return e.store.AddTicket(models.TicketDefinition{
		StadiumID:    1,
		Kind:         models.KindRegular,
		Name:         "Fan Zone",
		BasePrice:    decimal.NewFromInt(4500),
		BaseQuantity: qty,
		Weekdays:     pq.Int64Array{5},
	})
}

func TestListOffers(t *testing.T) {
	e := setupRouter(t)
	e.fridayTicket(5)

	w := e.do(http.MethodGet, "/api/stadiums/1/offers?date=2026-10-23", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var offers []models.Offer
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &offers))
	require.Len(t, offers, 1)
	assert.Equal(t, 5, offers[0].AvailableQuantity)

	w = e.do(http.MethodGet, "/api/stadiums/1/offers?date=2026-10-24", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = e.do(http.MethodGet, "/api/stadiums/1/offers?date=tomorrow", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(http.MethodGet, "/api/stadiums/abc/offers?date=2026-10-23", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAvailabilityAndCalendar(t *testing.T) {
	e := setupRouter(t)
	e.fridayTicket(5)

	w := e.do(http.MethodGet, "/api/stadiums/1/availability?date=2026-10-23", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"date":"2026-10-23","available":true}`, w.Body.String())

	w = e.do(http.MethodGet, "/api/stadiums/1/calendar?from=2026-10-22&days=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[{"date":"2026-10-22","available":false},{"date":"2026-10-23","available":true}]`, w.Body.String())

	w = e.do(http.MethodGet, "/api/stadiums/1/calendar?days=100", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReserve(t *testing.T) {
	e := setupRouter(t)
	ticket := e.fridayTicket(3)

	req := models.ReserveRequest{StadiumID: 1, TicketID: ticket.ID, Kind: "regular", Date: "2026-10-23", Quantity: 2}
	w := e.do(http.MethodPost, "/api/reservations", req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.ReserveResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Reserved)
	assert.Equal(t, 1, resp.Remaining)

	w = e.do(http.MethodPost, "/api/reservations", req)
	require.Equal(t, http.StatusConflict, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, true, body["sold_out"])

	req.TicketID = 999
	w = e.do(http.MethodPost, "/api/reservations", req)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = e.do(http.MethodPost, "/api/reservations", map[string]interface{}{"stadium_id": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReserve_StoreUnavailable(t *testing.T) {
	e := setupRouter(t)
	ticket := e.fridayTicket(3)
	e.store.FailWith(fmt.Errorf("%w: connection refused", apperrors.ErrStoreUnavailable))

	w := e.do(http.MethodPost, "/api/reservations",
		models.ReserveRequest{StadiumID: 1, TicketID: ticket.ID, Kind: "regular", Date: "2026-10-23", Quantity: 1})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestTicketCRUD(t *testing.T) {
	e := setupRouter(t)

	w := e.do(http.MethodPost, "/api/admin/tickets", map[string]interface{}{
		"stadium_id": 1, "kind": "special", "name": "Derby Box",
		"base_price": "30000", "base_quantity": 4, "date": "2026-10-23",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var created models.TicketResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "2026-10-23", created.Date)

	w = e.do(http.MethodGet, fmt.Sprintf("/api/admin/tickets/%d", created.ID), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = e.do(http.MethodPatch, fmt.Sprintf("/api/admin/tickets/%d", created.ID), map[string]interface{}{"base_quantity": 10})
	require.Equal(t, http.StatusOK, w.Code)
	var updated models.TicketResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.Equal(t, 10, updated.BaseQuantity)

	w = e.do(http.MethodGet, "/api/admin/tickets?stadium_id=1&kind=special", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []models.TicketResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	w = e.do(http.MethodDelete, fmt.Sprintf("/api/admin/tickets/%d", created.ID), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = e.do(http.MethodGet, fmt.Sprintf("/api/admin/tickets/%d", created.ID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = e.do(http.MethodPost, "/api/admin/tickets", map[string]interface{}{
		"stadium_id": 1, "kind": "regular", "name": "No weekdays",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSearchTickets(t *testing.T) {
	e := setupRouter(t)

	w := e.do(http.MethodGet, "/api/admin/tickets/search?query=fan&stadium_id=1&page=2&pageSize=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, search.SearchParams{Query: "fan", StadiumID: 1, Page: 2, PageSize: 5}, e.searcher.params)

	w = e.do(http.MethodGet, "/api/admin/tickets/search?pageSize=500", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOverrides(t *testing.T) {
	e := setupRouter(t)
	ticket := e.fridayTicket(5)

	path := fmt.Sprintf("/api/admin/overrides?stadium_id=1&ticket_id=%d&kind=regular&date=2026-10-23", ticket.ID)
	w := e.do(http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var row map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &row))
	assert.EqualValues(t, 5, row["quantity"])
	assert.Equal(t, "2026-10-23", row["date"])

	w = e.do(http.MethodPatch, "/api/admin/overrides", map[string]interface{}{
		"stadium_id": 1, "ticket_id": ticket.ID, "kind": "regular", "date": "2026-10-23",
		"enabled": "false", "price_override": "3000",
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &row))
	assert.Equal(t, false, row["enabled"])

	w = e.do(http.MethodGet, "/api/stadiums/1/offers?date=2026-10-23", nil)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = e.do(http.MethodPatch, "/api/admin/overrides", map[string]interface{}{
		"stadium_id": 1, "ticket_id": ticket.ID, "kind": "regular", "date": "2026-10-23", "quantity": -1,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(http.MethodPost, "/api/admin/overrides/purge", map[string]interface{}{"before": "2026-10-24", "dry_run": true})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"before":"2026-10-24","deleted":1,"dry_run":true}`, w.Body.String())
	assert.Equal(t, 1, e.store.OverrideCount())

	w = e.do(http.MethodPost, "/api/admin/overrides/purge", map[string]interface{}{"before": "2026-10-24"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, e.store.OverrideCount())
}

func TestDiscounts(t *testing.T) {
	e := setupRouter(t)
	ticket := e.fridayTicket(5)

	w := e.do(http.MethodPost, "/api/admin/discounts", map[string]interface{}{
		"stadium_id": 1, "ticket_id": ticket.ID, "ticket_kind": "regular",
		"day_of_month": 23, "month": 10, "discount_price": "4000",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var rule models.DiscountRule
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rule))

	w = e.do(http.MethodGet, "/api/stadiums/1/offers?date=2026-10-23", nil)
	var offers []models.Offer
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &offers))
	require.Len(t, offers, 1)
	assert.True(t, offers[0].Price.Equal(decimal.NewFromInt(4000)))
	require.NotNil(t, offers[0].Discount)

	w = e.do(http.MethodGet, "/api/admin/discounts?stadium_id=1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(http.MethodDelete, fmt.Sprintf("/api/admin/discounts/%d", rule.ID), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = e.do(http.MethodDelete, fmt.Sprintf("/api/admin/discounts/%d", rule.ID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = e.do(http.MethodPost, "/api/admin/discounts", map[string]interface{}{
		"stadium_id": 1, "ticket_id": ticket.ID, "ticket_kind": "regular",
		"day_of_month": 31, "month": 4, "discount_price": "4000",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReplenishment(t *testing.T) {
	e := setupRouter(t)

	w := e.do(http.MethodPost, "/api/admin/replenishment/run", map[string]interface{}{"stadium_id": 2})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(http.MethodPost, "/api/admin/replenishment/run?dry_run=true", map[string]interface{}{"stadium_id": 1, "month": "2026-11"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, e.store.OverrideCount())

	// без month dry_run планирует следующий месяц и не трогает ключ месяца
	w = e.do(http.MethodPost, "/api/admin/replenishment/run?dry_run=true", map[string]interface{}{"stadium_id": 1})
	require.Equal(t, http.StatusOK, w.Code)
	var plan models.GenerationResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &plan))
	assert.True(t, plan.DryRun)
	assert.Equal(t, "2026-11", plan.Month)
	assert.Equal(t, 30*service.DefaultMaxPerDate, plan.TotalCreated)
	assert.Zero(t, e.store.OverrideCount())

	w = e.do(http.MethodGet, "/api/admin/replenishment/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var untouched models.GenerationState
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &untouched))
	assert.Empty(t, untouched.MonthKey)

	w = e.do(http.MethodPost, "/api/admin/replenishment/run", map[string]interface{}{"stadium_id": 1})
	require.Equal(t, http.StatusOK, w.Code)
	var result models.GenerationResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, "2026-11", result.Month)
	assert.Equal(t, 30*service.DefaultMaxPerDate, result.TotalCreated)

	w = e.do(http.MethodPost, "/api/admin/replenishment/run", map[string]interface{}{"stadium_id": 1})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.True(t, result.Skipped)

	w = e.do(http.MethodGet, "/api/admin/replenishment/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var state models.GenerationState
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &state))
	assert.Equal(t, "2026-10", state.MonthKey)

	w = e.do(http.MethodPost, "/api/admin/replenishment/run", map[string]interface{}{"stadium_id": 1, "month": "November"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleServiceError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		err  error
		want int
	}{
		{apperrors.InvalidInput("bad"), http.StatusBadRequest},
		{apperrors.ErrTicketNotFound, http.StatusNotFound},
		{apperrors.ErrDiscountNotFound, http.StatusNotFound},
		{apperrors.ErrInsufficientInventory, http.StatusConflict},
		{apperrors.ErrCutoffExceeded, http.StatusConflict},
		{fmt.Errorf("wrapped: %w", apperrors.ErrStoreUnavailable), http.StatusServiceUnavailable},
		{apperrors.ErrUnauthorized, http.StatusUnauthorized},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		handleServiceError(c, tt.err, "test")
		assert.Equal(t, tt.want, w.Code, tt.err.Error())
	}
}
