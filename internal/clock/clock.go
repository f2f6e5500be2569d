// Package clock abstracts wall-clock time so streak and scheduling logic can
// be tested at fixed instants. DayOf is the single definition of a calendar
// day used everywhere; mixing day definitions is how off-by-one streak bugs
// happen.
package clock

import (
	"math"
	"time"
)

// Clock supplies the current time and the calendar-day boundary.
type Clock interface {
	Now() time.Time
	// DayOf truncates t to midnight in the clock's location.
	DayOf(t time.Time) time.Time
}

// System is a Clock backed by the real wall clock.
type System struct {
	Loc *time.Location // nil means time.Local
}

func (s System) location() *time.Location {
	if s.Loc != nil {
		return s.Loc
	}
	return time.Local
}

func (s System) Now() time.Time {
	return time.Now().In(s.location())
}

func (s System) DayOf(t time.Time) time.Time {
	t = t.In(s.location())
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, s.location())
}

// DaysBetween returns the whole calendar days from day a to day b, where both
// arguments are midnights as returned by DayOf. Positive when b is later.
// Rounding absorbs the 23h/25h days around DST transitions.
func DaysBetween(a, b time.Time) int {
	return int(math.Round(b.Sub(a).Hours() / 24))
}

// Fake is a manually advanced Clock for tests.
type Fake struct {
	Current time.Time
}

// NewFake returns a Fake pinned to t.
func NewFake(t time.Time) *Fake {
	return &Fake{Current: t}
}

func (f *Fake) Now() time.Time {
	return f.Current
}

func (f *Fake) DayOf(t time.Time) time.Time {
	t = t.In(f.Current.Location())
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, f.Current.Location())
}

// Advance moves the fake clock forward by d.
func (f *Fake) Advance(d time.Duration) {
	f.Current = f.Current.Add(d)
}
