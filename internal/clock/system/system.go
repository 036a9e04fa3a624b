// Package system provides the wall clock used for heartbeats and fallback file stamps.
package system

import "time"

// Clock reads the local wall clock. Fallback file names carry local time so
// they sort the way an operator expects in a file browser.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current local time.
func (Clock) Now() time.Time {
	return time.Now()
}

// Since returns the time elapsed since t.
func (c Clock) Since(t time.Time) time.Duration {
	return c.Now().Sub(t)
}
