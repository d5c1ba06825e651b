package ports

import (
	"context"
	"time"
)

// ClockPort provides time to the calibration phases, the cooldown timer and the
// tick scheduler, so that sessions can be replayed deterministically in tests.
type ClockPort interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done.
	Sleep(ctx context.Context, d time.Duration) error
}
