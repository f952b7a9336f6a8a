package calendar

import (
	"fmt"
	"time"

	apperrors "stadiumtix/internal/errors"
	"stadiumtix/internal/models"
)

// DateLayout тот же, что у моделей (YYYY-MM-DD)
const DateLayout = models.DateLayout

// MonthLayout формат ключа месяца (generation_state.month_key)
const MonthLayout = "2006-01"

// Clock is the single source of "now" for cutoff and replenishment decisions.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a plain function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock returns the wall clock.
func SystemClock() Clock {
	return ClockFunc(time.Now)
}

// ParseDate parses YYYY-MM-DD into a civil date (midnight UTC).
func ParseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, apperrors.InvalidInput("date is required")
	}
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, apperrors.InvalidInput("malformed date %q, expected YYYY-MM-DD", s)
	}
	return d, nil
}

// DateOf returns the civil date of t in t's own location as midnight UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FormatDate formats a civil date as YYYY-MM-DD.
func FormatDate(d time.Time) string {
	return d.Format(DateLayout)
}

// MonthKey returns the YYYY-MM key of t's civil month.
func MonthKey(t time.Time) string {
	return t.Format(MonthLayout)
}

// ParseMonthKey parses YYYY-MM.
func ParseMonthKey(s string) (int, time.Month, error) {
	t, err := time.Parse(MonthLayout, s)
	if err != nil {
		return 0, 0, apperrors.InvalidInput("malformed month %q, expected YYYY-MM", s)
	}
	return t.Year(), t.Month(), nil
}

// NextMonth returns the month following t's civil month.
func NextMonth(t time.Time) (int, time.Month) {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	return first.Year(), first.Month()
}

// DatesInMonth lists every civil date of the month in order.
func DatesInMonth(year int, month time.Month) []time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	var dates []time.Time
	for d := first; d.Month() == month; d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}
	return dates
}

// DaysInMonth returns the number of days of month in year.
func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ParseClock parses "HH:MM" into hour and minute.
func ParseClock(s string) (int, int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return t.Hour(), t.Minute(), nil
}
