package launcher

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/joeycumines/renderdemo/internal/poll"
	"github.com/joeycumines/renderdemo/internal/proc"
)

// DefaultWindowWait is how long the controller waits for the game to create
// its main window.
const DefaultWindowWait = 30 * time.Second

// WindowController applies a proc.WindowState to the game window.
type WindowController struct {
	Host     proc.Host
	Interval time.Duration
	Sleep    poll.SleepFunc
	// Wait bounds the wait for a main window (default DefaultWindowWait).
	Wait   time.Duration
	Logger *slog.Logger
}

// Set applies state, retrying while p has no main window. It gives up when
// Wait elapses or p exits.
func (w *WindowController) Set(ctx context.Context, p *proc.Process, state proc.WindowState) error {
	if state == proc.WindowUntouched {
		return nil
	}
	wait := w.Wait
	if wait <= 0 {
		wait = DefaultWindowWait
	}
	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	return poll.Until(ctx, w.Interval, w.Sleep, func() (bool, error) {
		err := w.Host.SetWindowState(p, state)
		if !errors.Is(err, proc.ErrNoWindow) {
			return true, err
		}
		exited, xerr := w.Host.HasExited(p)
		if xerr != nil {
			return false, xerr
		}
		if exited {
			return false, err
		}
		return false, nil
	})
}

// Apply is Set with failures logged instead of returned. A window that
// cannot be adjusted never fails a run.
func (w *WindowController) Apply(ctx context.Context, p *proc.Process, state proc.WindowState) {
	log := w.Logger
	if log == nil {
		log = slog.Default()
	}
	err := w.Set(ctx, p, state)
	switch {
	case err == nil:
		if state != proc.WindowUntouched {
			log.Debug("window state applied", "pid", p.PID, "state", state)
		}
	case errors.Is(err, proc.ErrUnsupported):
		log.Debug("window control not available on this platform", "state", state)
	default:
		log.Warn("could not apply window state", "pid", p.PID, "state", state, "error", err)
	}
}

// ApplyWindowPolicy applies state to p using host with default settings.
func ApplyWindowPolicy(ctx context.Context, host proc.Host, p *proc.Process, state proc.WindowState) {
	(&WindowController{Host: host}).Apply(ctx, p, state)
}
