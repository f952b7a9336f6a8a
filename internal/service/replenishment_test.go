package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stadiumtix/internal/calendar"
	apperrors "stadiumtix/internal/errors"
	"stadiumtix/internal/models"
	"stadiumtix/internal/service"
)

func TestRunMonthlyGeneration_OnlyDesignatedStadium(t *testing.T) {
	f := newFixture(t, monday(t))

	_, err := f.services.Replenishment.RunMonthlyGeneration(context.Background(), otherID)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
}

func TestRunMonthlyGeneration_GeneratesNextMonthOnce(t *testing.T) {
	f := newFixture(t, monday(t))
	ctx := context.Background()

	result, err := f.services.Replenishment.RunMonthlyGeneration(ctx, stadiumID)
	require.NoError(t, err)
	assert.False(t, result.Skipped)
	assert.Equal(t, "2026-11", result.Month)
	require.Len(t, result.Dates, 30)
	assert.Equal(t, 30*service.DefaultMaxPerDate, result.TotalCreated)

	for _, d := range calendar.DatesInMonth(2026, time.November) {
		assert.Equal(t, service.DefaultMaxPerDate, f.store.SpecialCount(stadiumID, d))
	}

	// новые билеты выключены до ручного включения
	offers, err := f.services.Availability.ResolveOffers(ctx, stadiumID, "2026-11-07")
	require.NoError(t, err)
	assert.Empty(t, offers)

	state, err := f.services.Replenishment.Status(ctx, stadiumID)
	require.NoError(t, err)
	assert.Equal(t, "2026-10", state.MonthKey)

	again, err := f.services.Replenishment.RunMonthlyGeneration(ctx, stadiumID)
	require.NoError(t, err)
	assert.True(t, again.Skipped)
	assert.Zero(t, again.TotalCreated)
	assert.Equal(t, service.DefaultMaxPerDate, f.store.SpecialCount(stadiumID, date("2026-11-07")))

	assert.Contains(t, f.publisher.subjects(), models.EventTicketsGenerated)
}

func TestRunMonthlyGeneration_RunsAgainInNextMonth(t *testing.T) {
	f := newFixture(t, monday(t))
	ctx := context.Background()

	_, err := f.services.Replenishment.RunMonthlyGeneration(ctx, stadiumID)
	require.NoError(t, err)

	f.now = time.Date(2026, 11, 1, 0, 5, 0, 0, almaty(t))
	result, err := f.services.Replenishment.RunMonthlyGeneration(ctx, stadiumID)
	require.NoError(t, err)
	assert.False(t, result.Skipped)
	assert.Equal(t, "2026-12", result.Month)
	assert.Equal(t, 31*service.DefaultMaxPerDate, result.TotalCreated)
}

func TestRunMonthlyGeneration_ConcurrentRunsCreateOnce(t *testing.T) {
	f := newFixture(t, monday(t))

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.services.Replenishment.RunMonthlyGeneration(context.Background(), stadiumID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	for _, d := range calendar.DatesInMonth(2026, time.November) {
		assert.Equal(t, service.DefaultMaxPerDate, f.store.SpecialCount(stadiumID, d))
	}
}

func TestGenerateForMonth_RespectsCapAndExistingNames(t *testing.T) {
	f := newFixture(t, monday(t))
	ctx := context.Background()

	f.special("Gold Tribune", 10, "30000", "2026-12-05")
	f.special("Derby Box", 10, "50000", "2026-12-05")
	f.special("Legends Lounge", 10, "70000", "2026-12-05")
	for i := 0; i < 9; i++ {
		f.special("Sector "+string(rune('A'+i)), 10, "1000", "2026-12-06")
	}

	result, err := f.services.Replenishment.GenerateForMonth(ctx, stadiumID, 2026, time.December)
	require.NoError(t, err)

	byDate := map[string]models.DateGeneration{}
	for _, dg := range result.Dates {
		byDate[dg.Date] = dg
	}

	assert.Equal(t, 3, byDate["2026-12-05"].Existing)
	assert.Equal(t, 5, byDate["2026-12-05"].Created)
	assert.True(t, byDate["2026-12-05"].CapReached)
	assert.Equal(t, 8, f.store.SpecialCount(stadiumID, date("2026-12-05")))

	assert.Equal(t, 0, byDate["2026-12-06"].Created)
	assert.True(t, byDate["2026-12-06"].CapReached)
	assert.Equal(t, 9, f.store.SpecialCount(stadiumID, date("2026-12-06")))

	assert.Equal(t, 8, byDate["2026-12-07"].Created)
	assert.Equal(t, len(service.DefaultRoster)-8, byDate["2026-12-07"].Skipped)

	// GenerateForMonth не трогает ключ месяца
	state, err := f.services.Replenishment.Status(ctx, stadiumID)
	require.NoError(t, err)
	assert.Empty(t, state.MonthKey)

	again, err := f.services.Replenishment.GenerateForMonth(ctx, stadiumID, 2026, time.December)
	require.NoError(t, err)
	assert.Zero(t, again.TotalCreated)
}

func TestGenerateForMonth_RichestTiersFirst(t *testing.T) {
	f := newFixture(t, monday(t))
	ctx := context.Background()

	_, err := f.services.Replenishment.GenerateForMonth(ctx, stadiumID, 2027, time.January)
	require.NoError(t, err)

	tickets, err := f.store.Tickets.ListSpecialForDate(ctx, stadiumID, date("2027-01-15"))
	require.NoError(t, err)
	require.Len(t, tickets, service.DefaultMaxPerDate)

	names := map[string]bool{}
	for _, tk := range tickets {
		names[tk.Name] = true
		row, ok := f.store.Override(models.OverrideKey{StadiumID: stadiumID, TicketID: tk.ID, Kind: models.KindSpecial, Date: date("2027-01-15")})
		require.True(t, ok)
		assert.False(t, row.Enabled)
		assert.Equal(t, tk.BaseQuantity, row.InitialQuantity)
	}
	assert.True(t, names["VIP Lounge"])
	assert.False(t, names["Restricted View"])
}

func TestPlanForMonth_WritesNothing(t *testing.T) {
	f := newFixture(t, monday(t))

	plan, err := f.services.Replenishment.PlanForMonth(context.Background(), stadiumID, 2026, time.November)
	require.NoError(t, err)
	assert.True(t, plan.DryRun)
	assert.Equal(t, 30*service.DefaultMaxPerDate, plan.TotalCreated)
	assert.Zero(t, f.store.SpecialCount(stadiumID, date("2026-11-07")))
	assert.Zero(t, f.store.OverrideCount())
}

func TestPlanNextMonth_LeavesMonthKeyForScheduledRun(t *testing.T) {
	f := newFixture(t, monday(t))
	ctx := context.Background()

	plan, err := f.services.Replenishment.PlanNextMonth(ctx, stadiumID)
	require.NoError(t, err)
	assert.True(t, plan.DryRun)
	assert.Equal(t, "2026-11", plan.Month)
	assert.Zero(t, f.store.OverrideCount())

	state, err := f.services.Replenishment.Status(ctx, stadiumID)
	require.NoError(t, err)
	assert.Empty(t, state.MonthKey)

	// настоящий запуск после плана не пропускается
	result, err := f.services.Replenishment.RunMonthlyGeneration(ctx, stadiumID)
	require.NoError(t, err)
	assert.False(t, result.Skipped)
	assert.Equal(t, plan.TotalCreated, result.TotalCreated)

	_, err = f.services.Replenishment.PlanNextMonth(ctx, otherID)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}
