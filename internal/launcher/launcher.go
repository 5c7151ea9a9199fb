// Package launcher starts the rendering helper and hands back the game
// process it spawns, then applies the window policy to that process.
//
// The helper (SourceDemoRender's LauncherCLI) injects itself into the game
// and is useless afterwards; once its single child shows up the helper is
// terminated and ownership of the game passes to the caller.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/joeycumines/renderdemo/internal/poll"
	"github.com/joeycumines/renderdemo/internal/proc"
)

var (
	// ErrHelperExited means the helper died before a child was observed.
	ErrHelperExited = errors.New("launcher: helper exited before starting the game")

	// ErrAmbiguousChild means the helper had more than one live child and
	// the policy was MultipleFail.
	ErrAmbiguousChild = errors.New("launcher: helper has more than one child process")
)

// HelperExecutable is the helper binary name inside the helper directory.
const HelperExecutable = "LauncherCLI.exe"

// DefaultIdleSlice is how long each WaitIdle call may block.
const DefaultIdleSlice = 100 * time.Millisecond

// LaunchError reports a failed launch. Err is one of the sentinels above, a
// context error, or the underlying Host error.
type LaunchError struct {
	Command proc.Command
	Stage   string
	Err     error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launcher: %s %s: %v", e.Stage, filepath.Base(e.Command.Path), e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// MultiplePolicy decides what happens when the helper has several children
// at once.
type MultiplePolicy int

const (
	// MultipleFail aborts the launch with ErrAmbiguousChild.
	MultipleFail MultiplePolicy = iota
	// MultipleOldest picks the child that started first, then the lowest
	// PID.
	MultipleOldest
)

func (p MultiplePolicy) String() string {
	switch p {
	case MultipleFail:
		return "fail"
	case MultipleOldest:
		return "oldest"
	default:
		return fmt.Sprintf("MultiplePolicy(%d)", int(p))
	}
}

// ParseMultiplePolicy accepts "fail" and "oldest".
func ParseMultiplePolicy(s string) (MultiplePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fail":
		return MultipleFail, nil
	case "oldest":
		return MultipleOldest, nil
	default:
		return 0, fmt.Errorf("unknown discovery policy %q (want fail or oldest)", s)
	}
}

// Launcher runs the helper and discovers the game it starts.
type Launcher struct {
	Host proc.Host
	// Interval between discovery polls (default poll.DefaultInterval).
	Interval time.Duration
	// IdleSlice bounds each Host.WaitIdle call (default DefaultIdleSlice).
	IdleSlice time.Duration
	Sleep     poll.SleepFunc
	// Timeout bounds the idle wait and discovery together; zero waits
	// forever.
	Timeout  time.Duration
	Multiple MultiplePolicy
	Logger   *slog.Logger
}

func (l *Launcher) logger() *slog.Logger {
	if l.Logger == nil {
		return slog.Default()
	}
	return l.Logger
}

// Launch spawns c, waits for it to settle and to start exactly one child,
// terminates it, and returns the child. On any failure after the spawn the
// helper is terminated before returning.
func (l *Launcher) Launch(ctx context.Context, c proc.Command) (*proc.Process, error) {
	if l.Host == nil {
		return nil, &LaunchError{Command: c, Stage: "spawn", Err: errors.New("no process host")}
	}
	log := l.logger()

	log.Debug("starting helper", "command", c.String(), "dir", c.Dir)
	helper, err := l.Host.Spawn(c)
	if err != nil {
		return nil, &LaunchError{Command: c, Stage: "spawn", Err: err}
	}
	log.Debug("helper started", "pid", helper.PID)

	ctx, cancel := poll.WithTimeout(ctx, l.Timeout)
	defer cancel()

	fail := func(stage string, err error) (*proc.Process, error) {
		if terr := l.Host.Terminate(helper); terr != nil {
			log.Warn("could not terminate helper", "pid", helper.PID, "error", terr)
		}
		return nil, &LaunchError{Command: c, Stage: stage, Err: err}
	}

	if err := l.waitIdle(ctx, helper); err != nil {
		return fail("waiting for", err)
	}

	child, err := l.discover(ctx, helper)
	if err != nil {
		return fail("discovering child of", err)
	}
	log.Debug("game process found", "pid", child.PID, "helper", helper.PID)

	if err := l.Host.Terminate(helper); err != nil {
		log.Warn("could not terminate helper", "pid", helper.PID, "error", err)
	}
	return child, nil
}

func (l *Launcher) waitIdle(ctx context.Context, helper *proc.Process) error {
	slice := l.IdleSlice
	if slice <= 0 {
		slice = DefaultIdleSlice
	}
	return poll.Until(ctx, l.Interval, l.Sleep, func() (bool, error) {
		idle, err := l.Host.WaitIdle(helper, slice)
		if err != nil || idle {
			return idle, err
		}
		return false, l.checkHelper(helper)
	})
}

func (l *Launcher) discover(ctx context.Context, helper *proc.Process) (*proc.Process, error) {
	var child *proc.Process
	err := poll.Until(ctx, l.Interval, l.Sleep, func() (bool, error) {
		var found bool
		var err error
		if child, found, err = l.pick(helper); err != nil || found {
			return found, err
		}
		if err := l.checkHelper(helper); err != nil {
			if !errors.Is(err, ErrHelperExited) {
				return false, err
			}
			// The game may have started between the listing and the exit.
			if child, found, err = l.pick(helper); err != nil || found {
				return found, err
			}
			return false, ErrHelperExited
		}
		return false, nil
	})
	return child, err
}

// pick lists the helper's children and applies the multiple-children policy.
func (l *Launcher) pick(helper *proc.Process) (*proc.Process, bool, error) {
	children, err := l.Host.ChildrenOf(helper.PID)
	if err != nil {
		return nil, false, err
	}
	switch {
	case len(children) == 1:
		return children[0], true, nil
	case len(children) > 1:
		if l.Multiple != MultipleOldest {
			return nil, false, fmt.Errorf("%w: %d candidates", ErrAmbiguousChild, len(children))
		}
		child := oldest(children)
		l.logger().Debug("several children, picked the oldest", "count", len(children), "pid", child.PID)
		return child, true, nil
	}
	return nil, false, nil
}

func (l *Launcher) checkHelper(helper *proc.Process) error {
	exited, err := l.Host.HasExited(helper)
	if err != nil {
		return err
	}
	if exited {
		return ErrHelperExited
	}
	return nil
}

// oldest orders by start time, unknown (zero) start times last, then PID.
func oldest(ps []*proc.Process) *proc.Process {
	sorted := append([]*proc.Process(nil), ps...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.StartTime != b.StartTime {
			if a.StartTime == 0 || b.StartTime == 0 {
				return b.StartTime == 0
			}
			return a.StartTime < b.StartTime
		}
		return a.PID < b.PID
	})
	return sorted[0]
}

// fixedLaunchFlags start the game windowed, off screen, with console logging
// enabled and nothing interactive in the way.
const fixedLaunchFlags = "-novid -nojoy -nosteamcontroller -condebug -window -y 9999"

// HelperConfig holds what HelperCommand needs to build the helper command.
type HelperConfig struct {
	// HelperDir contains LauncherCLI.exe; it is also the working directory.
	HelperDir string
	// GameExe is the game's hl2.exe.
	GameExe string
	// GameDir is the game's write directory (the "tf" directory).
	GameDir string
	// ConfigDir holds the shipped renderdemo cfg scripts. Optional.
	ConfigDir string
	// StagingDir is the run-local directory with the generated files.
	StagingDir string
	// LaunchOptions are extra game launch flags, passed through verbatim.
	LaunchOptions string
}

// SearchPath is the value of -insert_search_path: the config directory (if
// any) followed by the staging directory.
func (h HelperConfig) SearchPath() string {
	if h.ConfigDir == "" {
		return h.StagingDir
	}
	return h.ConfigDir + "," + h.StagingDir
}

// Params renders the /PARAMS value handed to the game.
func (h HelperConfig) Params() string {
	var b strings.Builder
	b.WriteString(fixedLaunchFlags)
	if opts := strings.TrimSpace(h.LaunchOptions); opts != "" {
		b.WriteByte(' ')
		b.WriteString(opts)
	}
	fmt.Fprintf(&b, ` -insert_search_path "%s" +exec renderdemo/autoexec`, h.SearchPath())
	return b.String()
}

// HelperCommand builds the helper invocation.
func HelperCommand(h HelperConfig) proc.Command {
	return proc.Command{
		Path: filepath.Join(h.HelperDir, HelperExecutable),
		Args: []string{"/GAME", h.GameExe, "/PATH", h.GameDir, "/PARAMS", h.Params()},
		Dir:  h.HelperDir,
	}
}
