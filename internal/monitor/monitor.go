// Package monitor tails the game's console log to learn how a recording run
// ends.
//
// The monitor waits for the log to appear, then streams it line by line,
// decoding the markers the cfg scripts echo. A run is Completed when the quit
// marker is read, and Crashed when the game exits first. Liveness is only
// ever checked after the log has been drained, so a quit marker written just
// before the game exits is still seen.
package monitor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"golang.org/x/text/encoding/unicode"

	"github.com/joeycumines/renderdemo/internal/poll"
)

// State is a monitor state.
type State int

const (
	WaitingForLog State = iota
	Streaming
	Completed
	Crashed
)

func (s State) String() string {
	switch s {
	case WaitingForLog:
		return "waiting-for-log"
	case Streaming:
		return "streaming"
	case Completed:
		return "completed"
	case Crashed:
		return "crashed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Terminal reports whether s ends the run.
func (s State) Terminal() bool { return s == Completed || s == Crashed }

// Result summarizes a monitor run.
type Result struct {
	State State
	// LogSeen is true once the log file was opened.
	LogSeen bool
	// Lines and Markers count complete lines read and progress markers
	// decoded.
	Lines   int
	Markers int
}

// Monitor watches one run's console log.
type Monitor struct {
	// LogPath is the console log the game writes (con_logfile).
	LogPath string
	// Exited reports whether the game has exited. Required.
	Exited func() (bool, error)
	// Protocol defaults to DefaultProtocol().
	Protocol *Protocol
	// Interval between polls (default poll.DefaultInterval).
	Interval time.Duration
	// Sleep is the injectable sleep (default poll.Sleep).
	Sleep poll.SleepFunc
	// Timeout bounds the whole run; zero means wait as long as the game
	// lives.
	Timeout time.Duration
	// Progress receives each decoded progress payload. Optional.
	Progress func(text string)
	// OnState is called on every state transition. Optional.
	OnState func(State)
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Run drives the state machine until the run is Completed or Crashed. An
// error means the monitor gave up (I/O failure, timeout, cancellation)
// without classifying the run; Result.State then holds the last state.
func (m *Monitor) Run(ctx context.Context) (Result, error) {
	if m.Exited == nil {
		return Result{}, errors.New("monitor: Exited is required")
	}
	ctx, cancel := poll.WithTimeout(ctx, m.Timeout)
	defer cancel()

	r := &run{m: m, proto: m.Protocol, logger: m.Logger}
	if r.proto == nil {
		r.proto = DefaultProtocol()
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	r.enter(WaitingForLog)

	f, err := r.waitForLog(ctx)
	if err != nil {
		return r.res, fmt.Errorf("monitor: waiting for %s: %w", m.LogPath, err)
	}
	if f == nil {
		r.logger.Debug("game exited before creating its log", "path", m.LogPath)
		r.enter(Crashed)
		return r.res, nil
	}
	defer f.Close()

	r.res.LogSeen = true
	r.enter(Streaming)
	if err := r.stream(ctx, f); err != nil {
		return r.res, fmt.Errorf("monitor: streaming %s: %w", m.LogPath, err)
	}
	return r.res, nil
}

type run struct {
	m      *Monitor
	proto  *Protocol
	logger *slog.Logger
	res    Result

	pending   []byte
	offset    int64
	firstLine bool
}

func (r *run) enter(s State) {
	r.res.State = s
	if r.m.OnState != nil {
		r.m.OnState(s)
	}
}

// waitForLog returns the opened log, or nil if the game exited without
// ever creating it.
func (r *run) waitForLog(ctx context.Context) (*os.File, error) {
	var f *os.File
	err := poll.Until(ctx, r.m.Interval, r.m.Sleep, func() (bool, error) {
		file, err := os.Open(r.m.LogPath)
		if err == nil {
			f = file
			return true, nil
		}
		if !os.IsNotExist(err) {
			return false, err
		}
		exited, err := r.m.Exited()
		if err != nil {
			return false, fmt.Errorf("liveness check: %w", err)
		}
		if !exited {
			return false, nil
		}
		// The game may have written its log and exited since the open.
		file, err = os.Open(r.m.LogPath)
		if err == nil {
			f = file
		} else if !os.IsNotExist(err) {
			return false, err
		}
		return true, nil
	})
	return f, err
}

func (r *run) stream(ctx context.Context, f *os.File) error {
	r.firstLine = true
	for {
		done, err := r.drain(f, false)
		if err != nil || done {
			return err
		}

		exited, err := r.m.Exited()
		if err != nil {
			return fmt.Errorf("liveness check: %w", err)
		}
		if exited {
			// Anything written before exit is in the file by now, including
			// a last line the game never terminated.
			done, err := r.drain(f, true)
			if err != nil || done {
				return err
			}
			r.logger.Debug("game exited without the quit marker", "lines", r.res.Lines)
			r.enter(Crashed)
			return nil
		}

		if err := poll.OrDefault(r.m.Sleep)(ctx, interval(r.m.Interval)); err != nil {
			return err
		}
	}
}

func interval(d time.Duration) time.Duration {
	if d <= 0 {
		return poll.DefaultInterval
	}
	return d
}

// drain reads everything currently in the file and handles every complete
// line. With final set, a trailing partial line is handled too. It reports
// true once the run is Completed.
func (r *run) drain(f *os.File, final bool) (bool, error) {
	if err := r.checkTruncated(f); err != nil {
		return false, err
	}

	buf := make([]byte, 32*1024)
	for {
		n, err := f.Read(buf)
		r.pending = append(r.pending, buf[:n]...)
		r.offset += int64(n)
		if err == io.EOF || (n == 0 && err == nil) {
			break
		}
		if err != nil {
			return false, err
		}
	}

	for {
		i := bytes.IndexByte(r.pending, '\n')
		if i < 0 {
			break
		}
		line := r.pending[:i]
		r.pending = r.pending[i+1:]
		if r.handle(line) {
			return true, nil
		}
	}

	if final && len(r.pending) > 0 {
		line := r.pending
		r.pending = nil
		return r.handle(line), nil
	}
	return false, nil
}

// checkTruncated rewinds when the file shrank under us, which happens when
// the game reopens the same log name.
func (r *run) checkTruncated(f *os.File) error {
	info, err := f.Stat()
	if err != nil {
		return err
	}
	if info.Size() >= r.offset {
		return nil
	}
	r.logger.Debug("console log truncated, rereading", "path", r.m.LogPath, "size", info.Size(), "offset", r.offset)
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	r.offset = 0
	r.pending = nil
	r.firstLine = true
	return nil
}

// handle processes one line and reports whether it was the quit marker.
func (r *run) handle(line []byte) bool {
	line = bytes.TrimSuffix(line, []byte("\r"))
	if r.firstLine {
		r.firstLine = false
		if b, err := unicode.UTF8BOM.NewDecoder().Bytes(line); err == nil {
			line = b
		}
	}
	r.res.Lines++

	msg := r.proto.Parse(string(line))
	switch msg.Kind {
	case Terminal:
		r.enter(Completed)
		return true
	case Progress:
		r.res.Markers++
		if r.m.Progress != nil {
			r.m.Progress(Decode(msg.Text))
		}
	}
	return false
}
