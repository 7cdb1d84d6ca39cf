package clock

import (
	"fmt"
	"time"

	"legend-tracker/internal/domain"
)

// Clock is the time source handed to jobs so tests can drive them without waiting.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func Real() Clock { return realClock{} }

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// ClashClock knows where the legend day and season boundaries fall.
type ClashClock struct {
	loc           *time.Location
	resetHour     int
	resetMinute   int
	seasonWeekday time.Weekday
}

func NewClashClock(zone string, resetHour, resetMinute int) (*ClashClock, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("failed to load time zone %q: %w", zone, err)
	}
	if resetHour < 0 || resetHour > 23 || resetMinute < 0 || resetMinute > 59 {
		return nil, fmt.Errorf("invalid reset time %02d:%02d", resetHour, resetMinute)
	}
	return &ClashClock{
		loc:           loc,
		resetHour:     resetHour,
		resetMinute:   resetMinute,
		seasonWeekday: time.Monday,
	}, nil
}

func (c *ClashClock) Location() *time.Location { return c.loc }

// ResetOn returns the reset instant on the local calendar day of now.
func (c *ClashClock) ResetOn(now time.Time) time.Time {
	local := now.In(c.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), c.resetHour, c.resetMinute, 0, 0, c.loc)
}

// DayKey returns yesterday's date before the daily reset and today's date from the reset on.
func (c *ClashClock) DayKey(now time.Time) domain.DayKey {
	local := now.In(c.loc)
	if local.Before(c.ResetOn(now)) {
		local = local.AddDate(0, 0, -1)
	}
	return domain.DayKey(local.Format(domain.DayKeyLayout))
}

// AfterReset reports whether now is strictly past today's reset instant.
func (c *ClashClock) AfterReset(now time.Time) bool {
	return now.After(c.ResetOn(now))
}

// IsResetMinute reports whether now falls inside the one-minute reset window.
func (c *ClashClock) IsResetMinute(now time.Time) bool {
	local := now.In(c.loc)
	return local.Hour() == c.resetHour && local.Minute() == c.resetMinute
}

// IsSeasonResetInstant is true only during the reset minute of the last Monday of a month.
func (c *ClashClock) IsSeasonResetInstant(now time.Time) bool {
	local := now.In(c.loc)
	return local.Weekday() == c.seasonWeekday &&
		local.AddDate(0, 0, 7).Month() != local.Month() &&
		c.IsResetMinute(now)
}

// NextSeasonReset returns the first season reset instant at or after now.
func (c *ClashClock) NextSeasonReset(now time.Time) time.Time {
	local := now.In(c.loc)
	for m := 0; m < 3; m++ {
		first := time.Date(local.Year(), local.Month()+time.Month(m), 1, c.resetHour, c.resetMinute, 0, 0, c.loc)
		last := first.AddDate(0, 1, -1)
		for last.Weekday() != c.seasonWeekday {
			last = last.AddDate(0, 0, -1)
		}
		if local.Before(last.Add(time.Minute)) {
			return last
		}
	}
	return time.Time{}
}
