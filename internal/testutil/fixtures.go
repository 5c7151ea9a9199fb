package testutil

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/joeycumines/renderdemo/internal/demo"
)

// WriteDemo writes a minimal demo file with the given game directory and
// tick count to dir/name and returns its path.
func WriteDemo(t *testing.T, dir, name, game string, ticks int) string {
	t.Helper()
	var buf bytes.Buffer
	if err := demo.Encode(&buf, &demo.Header{
		DemoProtocol:    3,
		NetworkProtocol: 24,
		MapName:         "cp_process_final",
		GameDir:         game,
		PlaybackTime:    float32(ticks) / 66,
		Ticks:           ticks,
	}); err != nil {
		t.Fatalf("encode demo: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("write demo: %v", err)
	}
	return path
}

// ErrSleepLimit is returned by Sleeper once it has been called Limit times,
// which turns a runaway polling loop into a test failure instead of a hang.
var ErrSleepLimit = errors.New("testutil: sleep limit reached")

// Sleeper is a scripted poll.SleepFunc. Every call records its duration and
// runs the next step, if any; it never actually waits.
type Sleeper struct {
	// Steps run one per call, in order.
	Steps []func()
	// Every runs on each call after the step, if set.
	Every func(call int)
	// Limit bounds the number of calls (default 10000).
	Limit int

	mu    sync.Mutex
	calls []time.Duration
}

// Sleep implements poll.SleepFunc.
func (s *Sleeper) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.calls = append(s.calls, d)
	n := len(s.calls)
	var step func()
	if n <= len(s.Steps) {
		step = s.Steps[n-1]
	}
	limit := s.Limit
	if limit <= 0 {
		limit = 10000
	}
	s.mu.Unlock()

	if n > limit {
		return ErrSleepLimit
	}
	if step != nil {
		step()
	}
	if s.Every != nil {
		s.Every(n)
	}
	return ctx.Err()
}

// Calls returns the durations slept so far.
func (s *Sleeper) Calls() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.calls...)
}

// SyncBuffer is a bytes.Buffer safe for concurrent use, for capturing log
// output written from other goroutines.
type SyncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *SyncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *SyncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// AppendFile appends s to path, creating it if needed.
func AppendFile(t *testing.T, path, s string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	if _, err := f.WriteString(s); err != nil {
		t.Fatalf("append %s: %v", path, err)
	}
}
