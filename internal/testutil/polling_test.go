package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPoll_ConvertsToTrue(t *testing.T) {
	ctx := context.Background()

	// Condition becomes true on first check
	calls := 0
	condition := func() bool {
		calls++
		return calls >= 3
	}

	err := Poll(ctx, condition, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, 3, calls, "condition checked 3 times before returning")
}

func TestPoll_TimeoutExceeded(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	// Condition never becomes true
	condition := func() bool {
		return false
	}

	err := Poll(ctx, condition, 5*time.Second, 10*time.Millisecond)
	require.Error(t, err, "should return timeout error")
}

func TestPoll_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up a channel to signal when condition is called
	conditionCalled := make(chan struct{})

	// Condition that will never return true (simulates infinite waiting)
	condition := func() bool {
		close(conditionCalled) // Signal that we checked
		return false
	}

	// Cancel context after condition is called
	go func() {
		<-conditionCalled
		cancel()
	}()

	err := Poll(ctx, condition, 5*time.Second, 10*time.Millisecond)
	require.Error(t, err, "should return context cancelled error")
	require.ErrorIs(t, err, context.Canceled, "should be context.Canceled error")
}
