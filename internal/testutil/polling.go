package testutil

import (
	"context"
	"fmt"
	"time"
)

// Poll checks condition in real time until it holds or timeout expires. It
// is for tests that wait on other goroutines or a pty; the code under test
// uses injected sleeps instead.
func Poll(ctx context.Context, condition func() bool, timeout time.Duration, interval time.Duration) error {
	start := time.Now()
	for {
		if condition() {
			return nil
		}

		if time.Since(start) >= timeout {
			return fmt.Errorf("timeout waiting for condition (threshold: %v)", timeout)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
			// Continue polling
		}
	}
}
