// Package system provides the wall-clock implementation of the
// collector.Clock interface.
package system

import "time"

// Clock reads the system time.
type Clock struct{}

// New returns a system Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time.
func (c *Clock) Now() time.Time {
	return time.Now()
}
