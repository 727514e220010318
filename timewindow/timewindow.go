// Package timewindow does civil-day arithmetic against a single fixed UTC offset.
// There is no DST and no dependency on the host's time.Local, so "today" is the same
// answer on every machine that runs the service.
package timewindow

import (
	"fmt"
	"time"
)

// DefaultOffset is UTC+7 (Asia/Ho_Chi_Minh, no DST).
const DefaultOffset = 7 * time.Hour

// Day is the length of every civil day under a fixed offset.
const Day = 24 * time.Hour

// Calculator maps absolute instants to civil dates and back.
type Calculator struct {
	zone  *time.Location
	clock func() time.Time
}

// New returns a Calculator for the given offset east of UTC, reading time.Now as its clock.
func New(offset time.Duration) *Calculator {
	return NewWithClock(offset, time.Now)
}

// NewWithClock is New with an injectable clock.
func NewWithClock(offset time.Duration, clock func() time.Time) *Calculator {
	if clock == nil {
		clock = time.Now
	}
	return &Calculator{
		zone:  time.FixedZone(zoneName(offset), int(offset/time.Second)),
		clock: clock,
	}
}

func zoneName(offset time.Duration) string {
	sign := '+'
	if offset < 0 {
		sign = '-'
		offset = -offset
	}
	h := int(offset / time.Hour)
	m := int((offset % time.Hour) / time.Minute)
	return fmt.Sprintf("UTC%c%02d:%02d", sign, h, m)
}

// Location returns the fixed zone used for civil dates.
func (c *Calculator) Location() *time.Location {
	return c.zone
}

// Now returns the calculator's clock reading.
func (c *Calculator) Now() time.Time {
	return c.clock()
}

// CivilDateOf shifts instant into the fixed zone and truncates it to its date.
func (c *Calculator) CivilDateOf(instant time.Time) Date {
	local := instant.In(c.zone)
	return Date{Year: local.Year(), Month: local.Month(), Day: local.Day()}
}

// DayWindowOf returns the half-open interval [start, end) of instants that belong to date.
// Both bounds are in UTC.
func (c *Calculator) DayWindowOf(date Date) (time.Time, time.Time) {
	start := time.Date(date.Year, date.Month, date.Day, 0, 0, 0, 0, c.zone).UTC()
	return start, start.Add(Day)
}

// Today is the civil date of the clock's current instant.
func (c *Calculator) Today() Date {
	return c.CivilDateOf(c.clock())
}

// Contains reports whether instant falls inside date's window.
func (c *Calculator) Contains(date Date, instant time.Time) bool {
	start, end := c.DayWindowOf(date)
	return !instant.Before(start) && instant.Before(end)
}
