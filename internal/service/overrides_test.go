package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "stadiumtix/internal/errors"
	"stadiumtix/internal/models"
	"stadiumtix/internal/service"
)

func TestParseKey(t *testing.T) {
	key, err := service.ParseKey(1, 2, "SPECIAL", "2026-10-23")
	require.NoError(t, err)
	assert.Equal(t, models.KindSpecial, key.Kind)
	assert.Equal(t, "2026-10-23", key.Date.Format("2006-01-02"))

	for _, tc := range []struct {
		stadium, ticket int64
		kind, date      string
	}{
		{0, 2, "regular", "2026-10-23"},
		{1, -1, "regular", "2026-10-23"},
		{1, 2, "", "2026-10-23"},
		{1, 2, "regular", "2026-13-01"},
	} {
		_, err := service.ParseKey(tc.stadium, tc.ticket, tc.kind, tc.date)
		assert.True(t, errors.Is(err, apperrors.ErrInvalidInput), "%+v", tc)
	}
}

func TestOverrideGet_MaterializesFromDefinition(t *testing.T) {
	f := newFixture(t, monday(t))
	ctx := context.Background()
	ticket := f.regular("Fan Zone", 7, "4500", 5)

	o, err := f.services.Overrides.Get(ctx, keyOf(ticket, "2026-10-23"))
	require.NoError(t, err)
	assert.Equal(t, 7, o.Quantity)
	assert.Equal(t, 7, o.InitialQuantity)
	assert.True(t, o.Enabled)
	assert.Nil(t, o.NameOverride)
	assert.False(t, o.PriceOverride.Valid)

	_, err = f.services.Overrides.Get(ctx, models.OverrideKey{StadiumID: stadiumID, TicketID: 404, Kind: models.KindRegular, Date: date("2026-10-23")})
	assert.True(t, errors.Is(err, apperrors.ErrTicketNotFound))
}

func TestSetOverrides(t *testing.T) {
	f := newFixture(t, monday(t))
	ctx := context.Background()
	ticket := f.regular("Fan Zone", 5, "4500", 5)
	key := keyOf(ticket, "2026-10-23")

	qty := 12
	name := "Fan Zone Derby"
	p := price("3900")
	o, err := f.services.Overrides.SetOverrides(ctx, key, models.OverridePatch{Quantity: &qty, NameOverride: &name, PriceOverride: &p})
	require.NoError(t, err)
	assert.Equal(t, 12, o.Quantity)
	assert.Equal(t, 5, o.InitialQuantity)
	require.NotNil(t, o.NameOverride)
	assert.Equal(t, "Fan Zone Derby", *o.NameOverride)
	assert.True(t, o.PriceOverride.Decimal.Equal(p))
	assert.Contains(t, f.cache.invalidated, "2026-10-23")
	assert.Contains(t, f.publisher.subjects(), models.EventOverrideUpdated)

	o, err = f.services.Overrides.SetOverrides(ctx, key, models.OverridePatch{ClearNameOverride: true, ClearPriceOverride: true})
	require.NoError(t, err)
	assert.Nil(t, o.NameOverride)
	assert.False(t, o.PriceOverride.Valid)
	assert.Equal(t, 12, o.Quantity)

	offers, err := f.services.Availability.ResolveOffers(ctx, stadiumID, "2026-10-23")
	require.NoError(t, err)
	require.Len(t, offers, 1)
	assert.Equal(t, "Fan Zone", offers[0].Name)
	assert.True(t, offers[0].Price.Equal(price("4500")))
	assert.Equal(t, 12, offers[0].AvailableQuantity)

	// пустой патч только материализует строку
	other := keyOf(ticket, "2026-10-30")
	o, err = f.services.Overrides.SetOverrides(ctx, other, models.OverridePatch{})
	require.NoError(t, err)
	assert.Equal(t, 5, o.Quantity)
}

func TestSetOverrides_Validation(t *testing.T) {
	f := newFixture(t, monday(t))
	ctx := context.Background()
	ticket := f.regular("Fan Zone", 5, "4500", 5)
	key := keyOf(ticket, "2026-10-23")

	negative := -1
	_, err := f.services.Overrides.SetOverrides(ctx, key, models.OverridePatch{Quantity: &negative})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))

	p := price("-10")
	_, err = f.services.Overrides.SetOverrides(ctx, key, models.OverridePatch{PriceOverride: &p})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))

	blank := " "
	_, err = f.services.Overrides.SetOverrides(ctx, key, models.OverridePatch{NameOverride: &blank})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))

	assert.Zero(t, f.store.OverrideCount())
}

func TestPatchFromRequest(t *testing.T) {
	enabled := models.FlexibleBool(false)
	qty := 3
	patch := service.PatchFromRequest(&models.UpdateOverrideRequest{Enabled: &enabled, Quantity: &qty, ClearNameOverride: true})

	require.NotNil(t, patch.Enabled)
	assert.False(t, *patch.Enabled)
	assert.Equal(t, 3, *patch.Quantity)
	assert.True(t, patch.ClearNameOverride)
	assert.Nil(t, patch.PriceOverride)

	assert.True(t, service.PatchFromRequest(&models.UpdateOverrideRequest{}).Empty())
}

func TestPurgeOverrides(t *testing.T) {
	f := newFixture(t, monday(t))
	ctx := context.Background()
	ticket := f.regular("Fan Zone", 5, "4500", 5)

	for _, d := range []string{"2026-10-09", "2026-10-16", "2026-10-23"} {
		_, err := f.services.Overrides.Get(ctx, keyOf(ticket, d))
		require.NoError(t, err)
	}

	n, err := f.services.Overrides.CountBefore(ctx, date("2026-10-19"))
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	assert.Equal(t, 3, f.store.OverrideCount())

	// сегодня 2026-10-19, храним последние 5 дней
	assert.Equal(t, "2026-10-14", f.services.Overrides.RetentionBoundary(5).Format("2006-01-02"))
	n, err = f.services.Overrides.PurgeExpired(ctx, 5)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = f.services.Overrides.PurgeBefore(ctx, date("2026-10-19"))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = f.services.Overrides.PurgeBefore(ctx, date("2026-10-19"))
	require.NoError(t, err)
	assert.Zero(t, n)

	_, ok := f.store.Override(keyOf(ticket, "2026-10-23"))
	assert.True(t, ok)
}
