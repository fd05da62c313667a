// Package schedule decides whether catalog entries are orderable at a given instant.
//
// Everything in this package is pure: no clocks, no storage, no logging. Callers read
// the wall clock once and pass the weekday and minute of day in.
package schedule

import (
	"fmt"
	"strings"
	"time"
)

// MinutesPerDay is the number of distinct TimeOfDay values.
const MinutesPerDay = 24 * 60

// TimeOfDay is minutes since midnight, 0-1439.
type TimeOfDay int

// At builds a TimeOfDay from hour and minute.
func At(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

// FromTime returns the minute of day of t in t's location.
func FromTime(t time.Time) TimeOfDay {
	return At(t.Hour(), t.Minute())
}

// ParseTimeOfDay parses a 24-hour "HH:MM" string. Surrounding spaces and a
// one-digit hour are accepted; signs and one-digit minutes are not.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time format %q, expected HH:MM", s)
	}

	hour, ok := digits(parts[0], 1, 2)
	if !ok || hour > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}

	minute, ok := digits(parts[1], 2, 2)
	if !ok || minute > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}

	return At(hour, minute), nil
}

// digits parses an unsigned decimal of minLen to maxLen digits.
func digits(s string, minLen, maxLen int) (int, bool) {
	if len(s) < minLen || len(s) > maxLen {
		return 0, false
	}
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	return n, true
}

// Valid reports whether t is within a single day.
func (t TimeOfDay) Valid() bool {
	return t >= 0 && t < MinutesPerDay
}

// Hour returns the hour component.
func (t TimeOfDay) Hour() int { return int(t) / 60 }

// Minute returns the minute component.
func (t TimeOfDay) Minute() int { return int(t) % 60 }

// String formats t as "HH:MM".
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// Window is a daily availability interval. End is exclusive.
// When End < Start the window spans midnight.
type Window struct {
	Start TimeOfDay
	End   TimeOfDay
}

// Overnight reports whether the window wraps past midnight.
func (w Window) Overnight() bool {
	return w.End < w.Start
}

// Duration returns the window length in minutes.
func (w Window) Duration() int {
	if w.Overnight() {
		return MinutesPerDay - int(w.Start) + int(w.End)
	}
	return int(w.End - w.Start)
}

// IsOpen reports whether now falls inside the window.
// Degenerate windows (Start == End) are rejected by ValidateWindow and never open.
func (w Window) IsOpen(now TimeOfDay) bool {
	if w.Overnight() {
		return now >= w.Start || now < w.End
	}
	return now >= w.Start && now < w.End
}

func (w Window) String() string {
	return w.Start.String() + "-" + w.End.String()
}
