// Package clock converts between real instants and the naive wall-clock
// values reminders are stored in.
package clock

import (
	"time"
)

// Clock returns the current wall-clock time in a timezone
type Clock interface {
	Now(tz string) time.Time
}

// System reads the process clock.
type System struct {
	// Default is used when tz is empty or unknown
	Default string
}

func (s System) Now(tz string) time.Time {
	return Naive(time.Now(), Location(tz, s.Default))
}

// Fixed always reports the same instant, interpreted in each zone.
type Fixed struct {
	At      time.Time
	Default string
}

func (f Fixed) Now(tz string) time.Time {
	return Naive(f.At, Location(tz, f.Default))
}

// Location loads tz, falling back to def and then to UTC.
func Location(tz, def string) *time.Location {
	for _, name := range []string{tz, def} {
		if name == "" {
			continue
		}
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
	}
	return time.UTC
}

// Naive returns t's clock fields in loc, carried in time.UTC.
func Naive(t time.Time, loc *time.Location) time.Time {
	l := t.In(loc)
	return time.Date(l.Year(), l.Month(), l.Day(), l.Hour(), l.Minute(), l.Second(), l.Nanosecond(), time.UTC)
}

// Absolute interprets the naive wall-clock value w in loc.
func Absolute(w time.Time, loc *time.Location) time.Time {
	return time.Date(w.Year(), w.Month(), w.Day(), w.Hour(), w.Minute(), w.Second(), w.Nanosecond(), loc)
}

// Truncate drops seconds so stored times line up with minute precision.
func Truncate(t time.Time) time.Time {
	return t.Truncate(time.Minute)
}
