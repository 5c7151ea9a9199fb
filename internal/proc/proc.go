// Package proc abstracts the operating-system process and window primitives
// renderdemo depends on: spawning the helper, enumerating the children it
// creates, waiting for it to become idle, adjusting the driven application's
// window, and terminating or probing processes.
//
// Each supported platform provides its own Host; tests use proctest.FakeHost.
package proc

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

var (
	// ErrUnsupported is returned by Host methods the current platform cannot
	// implement (for example, window control outside Windows).
	ErrUnsupported = errors.New("proc: operation not supported on this platform")

	// ErrNoWindow is returned by SetWindowState while the process does not
	// (yet) own a top-level window.
	ErrNoWindow = errors.New("proc: process has no main window")
)

// WindowState is the presentation policy applied to the driven process's
// main window.
type WindowState int

const (
	// WindowUntouched leaves the window wherever the application put it.
	WindowUntouched WindowState = iota
	// WindowFixed moves the window to a corner at the bottom of the Z-order
	// and minimizes it, keeping it reachable from the task switcher.
	WindowFixed
	// WindowHidden hides the window entirely.
	WindowHidden
)

func (s WindowState) String() string {
	switch s {
	case WindowUntouched:
		return "untouched"
	case WindowFixed:
		return "fixed"
	case WindowHidden:
		return "hidden"
	default:
		return fmt.Sprintf("WindowState(%d)", int(s))
	}
}

// ParseWindowState accepts "fixed", "hidden", and "untouched". "broken" is
// accepted as an alias for "untouched", matching the historical CLI value.
func ParseWindowState(s string) (WindowState, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fixed":
		return WindowFixed, nil
	case "hidden":
		return WindowHidden, nil
	case "untouched", "broken":
		return WindowUntouched, nil
	default:
		return 0, fmt.Errorf("unknown window state %q (want fixed, broken, or hidden)", s)
	}
}

// Command describes a process to spawn.
type Command struct {
	Path string
	Args []string
	Dir  string
	Env  []string
}

func (c Command) String() string {
	parts := append([]string{c.Path}, c.Args...)
	return strings.Join(parts, " ")
}

// Process identifies an OS process. StartTime is a platform-specific token
// (clock ticks since boot on Linux, FILETIME on Windows) recorded when the
// process was discovered; zero means unknown. Hosts compare it on every
// liveness probe so a recycled PID is reported as exited.
type Process struct {
	PID       int
	StartTime uint64

	cmd *exec.Cmd
}

// Host is the capability interface over OS process and window primitives.
//
// Implementations must not block for longer than the durations they are
// given; all waiting is done by callers through poll loops.
type Host interface {
	// Spawn starts c and returns the new process.
	Spawn(c Command) (*Process, error)

	// ChildrenOf lists live processes whose parent is pid.
	ChildrenOf(pid int) ([]*Process, error)

	// WaitIdle waits at most d for p to finish initializing and reports
	// whether it did. Platforms without an idle notion report true.
	WaitIdle(p *Process, d time.Duration) (bool, error)

	// SetWindowState applies state to p's main window.
	SetWindowState(p *Process, state WindowState) error

	// Terminate forcibly stops p. Terminating an already exited process is
	// not an error.
	Terminate(p *Process) error

	// HasExited reports whether p is no longer running.
	HasExited(p *Process) (bool, error)
}

// NewHost returns the Host for the running platform.
func NewHost() Host {
	return newHost()
}

// startCommand is the Spawn implementation shared by the real hosts.
func startCommand(c Command) (*Process, error) {
	if c.Path == "" {
		return nil, errors.New("proc: empty command path")
	}
	cmd := exec.Command(c.Path, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = c.Env
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("proc: start %s: %w", c.Path, err)
	}
	return &Process{PID: cmd.Process.Pid, cmd: cmd}, nil
}

// killSpawned kills and reaps a process this package started. It reports
// false when p was not spawned by us.
func killSpawned(p *Process) (bool, error) {
	if p.cmd == nil || p.cmd.Process == nil {
		return false, nil
	}
	err := p.cmd.Process.Kill()
	if err != nil && !errors.Is(err, os.ErrProcessDone) {
		return true, fmt.Errorf("proc: kill %d: %w", p.PID, err)
	}
	// Reap; the exit status of a killed helper carries no information.
	_ = p.cmd.Wait()
	return true, nil
}
