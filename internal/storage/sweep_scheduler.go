package storage

import (
	"context"
	"time"
)

// SweepScheduler repeats a Sweep at a fixed interval, for long-lived
// `renderdemo clean -every` invocations on render farms.
type SweepScheduler struct {
	Sweeper *Sweeper
	// Interval is the time between sweeps. If <= 0, only the initial sweep
	// is performed and Run waits for cancellation.
	Interval time.Duration
	// OnReport receives the result of every sweep. Optional.
	OnReport func(*SweepReport, error)

	// NewTicker creates a ticker channel and its stop function.
	// If nil, time.NewTicker is used. Inject a custom implementation for
	// deterministic testing without real timers.
	NewTicker func(d time.Duration) (tick <-chan time.Time, stop func())
}

// Run sweeps immediately, then at every tick until ctx is cancelled.
func (s *SweepScheduler) Run(ctx context.Context) {
	s.runOnce()

	if s.Interval <= 0 {
		<-ctx.Done()
		return
	}

	newTicker := s.NewTicker
	if newTicker == nil {
		newTicker = defaultNewTicker
	}

	ch, stop := newTicker(s.Interval)
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ch:
			s.runOnce()
		}
	}
}

func (s *SweepScheduler) runOnce() {
	report, err := s.Sweeper.Sweep()
	if s.OnReport != nil {
		s.OnReport(report, err)
	}
}

// defaultNewTicker wraps time.NewTicker to match the NewTicker signature.
func defaultNewTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}
