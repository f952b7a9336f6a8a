package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "stadiumtix/internal/errors"
	"stadiumtix/internal/models"
)

func TestCatalogCreate(t *testing.T) {
	f := newFixture(t, monday(t))
	ctx := context.Background()

	regular, err := f.services.Catalog.Create(ctx, &models.CreateTicketRequest{
		StadiumID: stadiumID, Kind: "Regular", Name: "  Fan Zone ",
		BasePrice: price("4500"), BaseQuantity: 100, Weekdays: []int{6, 5, 6, 0},
	})
	require.NoError(t, err)
	assert.Equal(t, models.KindRegular, regular.Kind)
	assert.Equal(t, "Fan Zone", regular.Name)
	assert.Equal(t, []int64{0, 5, 6}, []int64(regular.Weekdays))

	special, err := f.services.Catalog.Create(ctx, &models.CreateTicketRequest{
		StadiumID: stadiumID, Kind: "special", Name: "Derby Box",
		BasePrice: price("30000"), BaseQuantity: 4, Date: "2026-10-23",
	})
	require.NoError(t, err)
	require.NotNil(t, special.Date)
	assert.Equal(t, "2026-10-23", special.Date.Format("2006-01-02"))

	assert.Equal(t, []string{models.EventTicketCreated, models.EventTicketCreated}, f.publisher.subjects())
}

func TestCatalogCreate_Validation(t *testing.T) {
	f := newFixture(t, monday(t))

	tests := []struct {
		name string
		req  models.CreateTicketRequest
	}{
		{"no stadium", models.CreateTicketRequest{Kind: "regular", Name: "A", Weekdays: []int{1}}},
		{"bad kind", models.CreateTicketRequest{StadiumID: stadiumID, Kind: "season", Name: "A", Weekdays: []int{1}}},
		{"blank name", models.CreateTicketRequest{StadiumID: stadiumID, Kind: "regular", Name: "  ", Weekdays: []int{1}}},
		{"negative price", models.CreateTicketRequest{StadiumID: stadiumID, Kind: "regular", Name: "A", BasePrice: price("-5"), Weekdays: []int{1}}},
		{"negative quantity", models.CreateTicketRequest{StadiumID: stadiumID, Kind: "regular", Name: "A", BaseQuantity: -1, Weekdays: []int{1}}},
		{"regular without weekdays", models.CreateTicketRequest{StadiumID: stadiumID, Kind: "regular", Name: "A"}},
		{"weekday out of range", models.CreateTicketRequest{StadiumID: stadiumID, Kind: "regular", Name: "A", Weekdays: []int{7}}},
		{"regular with date", models.CreateTicketRequest{StadiumID: stadiumID, Kind: "regular", Name: "A", Weekdays: []int{1}, Date: "2026-10-23"}},
		{"special without date", models.CreateTicketRequest{StadiumID: stadiumID, Kind: "special", Name: "A"}},
		{"special with weekdays", models.CreateTicketRequest{StadiumID: stadiumID, Kind: "special", Name: "A", Date: "2026-10-23", Weekdays: []int{5}}},
		{"bad date", models.CreateTicketRequest{StadiumID: stadiumID, Kind: "special", Name: "A", Date: "23/10/2026"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			_, err := f.services.Catalog.Create(context.Background(), &req)
			assert.True(t, errors.Is(err, apperrors.ErrInvalidInput), "got %v", err)
		})
	}
}

func TestCatalogUpdate_KeepsMaterializedRows(t *testing.T) {
	f := newFixture(t, monday(t))
	ctx := context.Background()
	ticket := f.regular("Fan Zone", 5, "4500", 5)

	_, err := f.services.Overrides.Get(ctx, keyOf(ticket, "2026-10-23"))
	require.NoError(t, err)

	qty := 50
	name := "Fan Zone North"
	updated, err := f.services.Catalog.Update(ctx, ticket.ID, &models.UpdateTicketRequest{BaseQuantity: &qty, Name: &name})
	require.NoError(t, err)
	assert.Equal(t, 50, updated.BaseQuantity)
	assert.Equal(t, models.KindRegular, updated.Kind)

	// уже материализованная строка сохраняет старый остаток
	row, ok := f.store.Override(keyOf(ticket, "2026-10-23"))
	require.True(t, ok)
	assert.Equal(t, 5, row.Quantity)

	// новая дата берет новый base_quantity
	fresh, err := f.services.Overrides.Get(ctx, keyOf(ticket, "2026-10-30"))
	require.NoError(t, err)
	assert.Equal(t, 50, fresh.Quantity)

	offers, err := f.services.Availability.ResolveOffers(ctx, stadiumID, "2026-10-23")
	require.NoError(t, err)
	require.Len(t, offers, 1)
	assert.Equal(t, "Fan Zone North", offers[0].Name)

	_, err = f.services.Catalog.Update(ctx, 999, &models.UpdateTicketRequest{Name: &name})
	assert.True(t, errors.Is(err, apperrors.ErrTicketNotFound))

	badDate := "2026-10-23"
	_, err = f.services.Catalog.Update(ctx, ticket.ID, &models.UpdateTicketRequest{Date: &badDate})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
}

func TestCatalogDelete_CascadesLedgerAndRules(t *testing.T) {
	f := newFixture(t, monday(t))
	ctx := context.Background()
	ticket := f.regular("Fan Zone", 5, "4500", 5)

	_, err := f.services.Overrides.Get(ctx, keyOf(ticket, "2026-10-23"))
	require.NoError(t, err)
	_, err = f.services.Discounts.Create(ctx, &models.CreateDiscountRequest{
		StadiumID: stadiumID, TicketID: ticket.ID, TicketKind: "regular",
		DayOfMonth: 23, Month: 10, DiscountPrice: price("1000"),
	})
	require.NoError(t, err)

	require.NoError(t, f.services.Catalog.Delete(ctx, ticket.ID))
	assert.Zero(t, f.store.OverrideCount())

	rules, err := f.services.Discounts.List(ctx, stadiumID, ticket.ID)
	require.NoError(t, err)
	assert.Empty(t, rules)
	assert.Contains(t, f.publisher.subjects(), models.EventTicketDeleted)

	err = f.services.Catalog.Delete(ctx, ticket.ID)
	assert.True(t, errors.Is(err, apperrors.ErrTicketNotFound))
}

func TestCatalogList(t *testing.T) {
	f := newFixture(t, monday(t))
	ctx := context.Background()
	f.regular("Fan Zone", 5, "4500", 5)
	f.special("Derby Box", 4, "30000", "2026-10-23")

	all, err := f.services.Catalog.List(ctx, stadiumID, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	specials, err := f.services.Catalog.List(ctx, stadiumID, "special")
	require.NoError(t, err)
	require.Len(t, specials, 1)
	assert.Equal(t, "Derby Box", specials[0].Name)

	_, err = f.services.Catalog.List(ctx, stadiumID, "vip")
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
}
