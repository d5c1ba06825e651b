// Package system provides the wall-clock and random-source adapters used outside tests.
package system

import (
	"context"
	"time"
)

// Clock implements ports.ClockPort on the real clock
type Clock struct{}

// NewClock creates a wall clock
func NewClock() *Clock {
	return &Clock{}
}

// Now returns the current time
func (Clock) Now() time.Time {
	return time.Now()
}

// Sleep waits for d or until ctx is cancelled
func (Clock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
