package launcher

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeycumines/renderdemo/internal/proc"
	"github.com/joeycumines/renderdemo/internal/proc/proctest"
	"github.com/joeycumines/renderdemo/internal/testutil"
)

var game = &proc.Process{PID: 2000, StartTime: 1}

func TestWindowController_Untouched(t *testing.T) {
	t.Parallel()
	host := &proctest.FakeHost{}
	require.NoError(t, (&WindowController{Host: host}).Set(context.Background(), game, proc.WindowUntouched))
	assert.Empty(t, host.WindowStates)
}

func TestWindowController_WaitsForWindow(t *testing.T) {
	t.Parallel()
	host := &proctest.FakeHost{WindowErrs: []error{proc.ErrNoWindow, proc.ErrNoWindow}}
	sleeper := &testutil.Sleeper{Limit: 10}
	w := &WindowController{Host: host, Sleep: sleeper.Sleep, Interval: 50 * time.Millisecond}

	require.NoError(t, w.Set(context.Background(), game, proc.WindowFixed))
	assert.Equal(t, []proc.WindowState{proc.WindowFixed, proc.WindowFixed, proc.WindowFixed}, host.WindowStates)
	assert.Equal(t, []time.Duration{50 * time.Millisecond, 50 * time.Millisecond}, sleeper.Calls())
}

func TestWindowController_GivesUpWhenProcessExits(t *testing.T) {
	t.Parallel()
	host := &proctest.FakeHost{
		WindowErrs: []error{proc.ErrNoWindow, proc.ErrNoWindow, proc.ErrNoWindow},
		ExitAfter:  map[int]int{2000: 1},
	}
	w := &WindowController{Host: host, Sleep: (&testutil.Sleeper{Limit: 10}).Sleep}

	err := w.Set(context.Background(), game, proc.WindowHidden)
	assert.ErrorIs(t, err, proc.ErrNoWindow)
	assert.Len(t, host.WindowStates, 2)
}

func TestWindowController_WaitExpires(t *testing.T) {
	t.Parallel()
	host := &proctest.FakeHost{WindowErrs: []error{proc.ErrNoWindow, proc.ErrNoWindow, proc.ErrNoWindow}}
	w := &WindowController{Host: host, Sleep: (&testutil.Sleeper{Limit: 10}).Sleep, Wait: time.Nanosecond}

	err := w.Set(context.Background(), game, proc.WindowFixed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWindowController_ApplySwallowsFailures(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	host := &proctest.FakeHost{WindowErrs: []error{errors.New("SetWindowPos: access denied")}}
	(&WindowController{Host: host, Logger: logger}).Apply(context.Background(), game, proc.WindowFixed)
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "access denied")

	buf.Reset()
	host = &proctest.FakeHost{WindowErrs: []error{proc.ErrUnsupported}}
	(&WindowController{Host: host, Logger: logger}).Apply(context.Background(), game, proc.WindowHidden)
	assert.Contains(t, buf.String(), "level=DEBUG")
	assert.Contains(t, buf.String(), "window control not available")
}

func TestApplyWindowPolicy(t *testing.T) {
	t.Parallel()
	host := &proctest.FakeHost{}
	ApplyWindowPolicy(context.Background(), host, game, proc.WindowHidden)
	assert.Equal(t, []proc.WindowState{proc.WindowHidden}, host.WindowStates)
}
