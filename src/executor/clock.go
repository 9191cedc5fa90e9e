package executor

import (
	"context"
	"time"
)

// Clock abstracts wall-clock reads and bounded sleeps so the polling state
// machines can run against a virtual clock in tests.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

// RealClock is the production clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// Sleep blocks for d or until ctx is cancelled, whichever comes first.
func (RealClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
