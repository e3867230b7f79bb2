// Package system provides the wall clock and a fixed clock for runs that
// must be reproducible.
package system

import "time"

// Clock implements crawler.Clock using time.Now in UTC.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}

// Fixed always returns the same instant.
type Fixed struct {
	At time.Time
}

// NewFixed pins the clock at t.
func NewFixed(t time.Time) Fixed {
	return Fixed{At: t.UTC()}
}

// Now returns the pinned instant.
func (f Fixed) Now() time.Time {
	return f.At
}
