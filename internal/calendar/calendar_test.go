package calendar

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "stadiumtix/internal/errors"
	"stadiumtix/internal/models"
)

func almaty(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Almaty")
	require.NoError(t, err)
	return loc
}

func fixedCutoff(t *testing.T, now time.Time) *Cutoff {
	t.Helper()
	c, err := NewCutoff(ClockFunc(func() time.Time { return now }), now.Location(), "")
	require.NoError(t, err)
	return c
}

func TestCanPurchase_Boundaries(t *testing.T) {
	loc := almaty(t)
	today := time.Date(2026, 6, 12, 0, 0, 0, 0, time.UTC)
	tomorrow := today.AddDate(0, 0, 1)
	yesterday := today.AddDate(0, 0, -1)

	tests := []struct {
		name string
		now  time.Time
		date time.Time
		want bool
	}{
		{"today one second before cutoff", time.Date(2026, 6, 12, 20, 29, 59, 0, loc), today, true},
		{"today at cutoff", time.Date(2026, 6, 12, 20, 30, 0, 0, loc), today, false},
		{"today after cutoff", time.Date(2026, 6, 12, 23, 59, 0, 0, loc), today, false},
		{"today early morning", time.Date(2026, 6, 12, 0, 0, 1, 0, loc), today, true},
		{"tomorrow after cutoff", time.Date(2026, 6, 12, 23, 0, 0, 0, loc), tomorrow, true},
		{"yesterday", time.Date(2026, 6, 12, 9, 0, 0, 0, loc), yesterday, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := fixedCutoff(t, tt.now)
			assert.Equal(t, tt.want, c.CanPurchase(tt.date))
		})
	}
}

func TestCanPurchase_UsesVenueTimezone(t *testing.T) {
	loc := almaty(t)
	// 15:00 UTC is 20:00 in Almaty (UTC+5): still open
	nowUTC := time.Date(2026, 6, 12, 15, 0, 0, 0, time.UTC)
	c, err := NewCutoff(ClockFunc(func() time.Time { return nowUTC }), loc, "20:30")
	require.NoError(t, err)

	assert.True(t, c.CanPurchase(time.Date(2026, 6, 12, 0, 0, 0, 0, time.UTC)))

	// 19:00 UTC is already the next day in Almaty, so June 12 is in the past
	late := time.Date(2026, 6, 12, 19, 0, 0, 0, time.UTC)
	c, err = NewCutoff(ClockFunc(func() time.Time { return late }), loc, "20:30")
	require.NoError(t, err)

	assert.False(t, c.CanPurchase(time.Date(2026, 6, 12, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2026-06-13", FormatDate(c.Today()))
}

func TestNewCutoff_InvalidTime(t *testing.T) {
	_, err := NewCutoff(nil, time.UTC, "25:99")
	assert.Error(t, err)

	_, err = NewCutoff(nil, nil, "20:30")
	assert.Error(t, err)
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2026-02-28")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC), d)

	for _, bad := range []string{"", "2026-02-30", "28.02.2026", "2026-13-01"} {
		_, err := ParseDate(bad)
		assert.True(t, errors.Is(err, apperrors.ErrInvalidInput), bad)
	}
}

func TestMonthHelpers(t *testing.T) {
	y, m := NextMonth(time.Date(2026, 12, 31, 23, 0, 0, 0, time.UTC))
	assert.Equal(t, 2027, y)
	assert.Equal(t, time.January, m)

	assert.Len(t, DatesInMonth(2028, time.February), 29)
	assert.Len(t, DatesInMonth(2026, time.February), 28)
	assert.Equal(t, 30, DaysInMonth(2026, time.November))

	y, m, err := ParseMonthKey("2026-11")
	require.NoError(t, err)
	assert.Equal(t, 2026, y)
	assert.Equal(t, time.November, m)

	_, _, err = ParseMonthKey("2026/11")
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))

	assert.Equal(t, "2026-11", MonthKey(time.Date(2026, 11, 3, 0, 0, 0, 0, time.UTC)))
}

// Даты, которые принимает API, и даты в ответах моделей должны совпадать по формату
func TestDateLayout_MatchesResponses(t *testing.T) {
	d, err := ParseDate("2026-11-07")
	require.NoError(t, err)

	resp := models.NewTicketResponse(&models.TicketDefinition{Kind: models.KindSpecial, Date: &d})
	assert.Equal(t, FormatDate(d), resp.Date)
	assert.Equal(t, FormatDate(d), models.NewOverrideResponse(&models.DateOverride{Date: d}).Date)

	back, err := ParseDate(resp.Date)
	require.NoError(t, err)
	assert.True(t, back.Equal(d))
}
