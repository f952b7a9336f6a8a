package calendar

import (
	"fmt"
	"time"
)

// DefaultCutoff время закрытия продаж на текущий день
const DefaultCutoff = "20:30"

// Cutoff binds a clock to the single civil timezone the venue operates in and
// answers same-day purchase questions.
type Cutoff struct {
	clock  Clock
	loc    *time.Location
	hour   int
	minute int
}

// NewCutoff creates a cutoff rule. cutoff is "HH:MM" in loc; empty means DefaultCutoff.
func NewCutoff(clock Clock, loc *time.Location, cutoff string) (*Cutoff, error) {
	if clock == nil {
		clock = SystemClock()
	}
	if loc == nil {
		return nil, fmt.Errorf("cutoff location is required")
	}
	if cutoff == "" {
		cutoff = DefaultCutoff
	}
	hour, minute, err := ParseClock(cutoff)
	if err != nil {
		return nil, err
	}
	return &Cutoff{clock: clock, loc: loc, hour: hour, minute: minute}, nil
}

// Location returns the configured timezone.
func (c *Cutoff) Location() *time.Location { return c.loc }

// Now returns the current instant in the configured timezone.
func (c *Cutoff) Now() time.Time {
	return c.clock.Now().In(c.loc)
}

// Today returns the current civil date in the configured timezone.
func (c *Cutoff) Today() time.Time {
	return DateOf(c.Now())
}

// CurrentMonthKey returns the YYYY-MM key of the current civil month.
func (c *Cutoff) CurrentMonthKey() string {
	return MonthKey(c.Now())
}

// CanPurchase reports whether date may still be sold: future dates always,
// today only strictly before the cutoff time, past dates never.
func (c *Cutoff) CanPurchase(date time.Time) bool {
	now := c.Now()
	today := DateOf(now)
	d := DateOf(date)

	switch {
	case d.After(today):
		return true
	case d.Before(today):
		return false
	}

	closesAt := time.Date(now.Year(), now.Month(), now.Day(), c.hour, c.minute, 0, 0, c.loc)
	return now.Before(closesAt)
}
