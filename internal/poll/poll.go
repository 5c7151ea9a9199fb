// Package poll provides the sleep-and-recheck primitive shared by every
// waiting loop in renderdemo.
//
// Waits are never blocking syscalls: each loop checks a condition, and if it
// is not yet satisfied, sleeps for a fixed interval via a SleepFunc. Tests
// inject their own SleepFunc to drive state transitions deterministically
// without real delays.
package poll

import (
	"context"
	"time"
)

// DefaultInterval is the recheck interval used when none is configured.
const DefaultInterval = 100 * time.Millisecond

// SleepFunc pauses for d, returning early with ctx.Err() if ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the production SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// OrDefault returns sleep, or Sleep if sleep is nil.
func OrDefault(sleep SleepFunc) SleepFunc {
	if sleep == nil {
		return Sleep
	}
	return sleep
}

// Until calls check until it reports done, returns an error, or ctx ends.
// Between unsuccessful checks it sleeps for interval using sleep (nil means
// Sleep). The condition is always checked at least once before any sleep.
func Until(ctx context.Context, interval time.Duration, sleep SleepFunc, check func() (bool, error)) error {
	sleep = OrDefault(sleep)
	if interval <= 0 {
		interval = DefaultInterval
	}
	for {
		done, err := check()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if err := sleep(ctx, interval); err != nil {
			return err
		}
	}
}

// WithTimeout derives a context bounded by timeout. A timeout <= 0 means
// unbounded, in which case the returned context is only cancellable.
func WithTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, timeout)
}
