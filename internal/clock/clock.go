// Package clock abstracts the wall clock so protocol timestamps can be injected.
package clock

import "time"

// Clock reports the current wall-clock time.
type Clock interface {
	Now() time.Time
}

// System is the Clock backed by time.Now, always in UTC.
type System struct{}

// Now returns the current UTC time.
func (System) Now() time.Time {
	return time.Now().UTC()
}

// Skewed shifts another clock by a fixed amount.
type Skewed struct {
	// Base is the underlying clock.
	Base Clock
	// Skew is added to every reading of Base.
	Skew time.Duration
}

// Now returns the base reading shifted by Skew.
func (s Skewed) Now() time.Time {
	return s.Base.Now().Add(s.Skew)
}
