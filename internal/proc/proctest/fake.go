// Package proctest provides a scripted proc.Host for tests.
package proctest

import (
	"sync"
	"time"

	"github.com/joeycumines/renderdemo/internal/proc"
)

// FakeHost is a deterministic proc.Host. Zero values describe a well-behaved
// platform: the helper spawns as HelperPID, is idle at once, has no children,
// and nothing ever exits until it is terminated.
type FakeHost struct {
	mu sync.Mutex

	// HelperPID is the PID handed out by Spawn (default 1000).
	HelperPID int
	SpawnErr  error

	// IdleAfter is the number of WaitIdle calls that report false first.
	IdleAfter int
	IdleErr   error

	// Children is returned by ChildrenOf(HelperPID) once ChildrenAfter calls
	// have been made; earlier calls return nothing.
	Children      []*proc.Process
	ChildrenAfter int
	ChildrenErr   error

	// ExitAfter maps a PID to the number of HasExited calls that report
	// false before it reports true. PIDs absent from the map never exit on
	// their own.
	ExitAfter map[int]int
	ExitErr   error

	// WindowErrs are returned by successive SetWindowState calls; once
	// exhausted, calls succeed.
	WindowErrs   []error
	TerminateErr error

	// Recorded calls.
	Spawned      []proc.Command
	Terminated   []int
	WindowStates []proc.WindowState
	IdleCalls    int
	ChildCalls   int

	exitCalls  map[int]int
	terminated map[int]bool
}

var _ proc.Host = (*FakeHost)(nil)

func (f *FakeHost) helperPID() int {
	if f.HelperPID == 0 {
		return 1000
	}
	return f.HelperPID
}

func (f *FakeHost) Spawn(c proc.Command) (*proc.Process, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Spawned = append(f.Spawned, c)
	if f.SpawnErr != nil {
		return nil, f.SpawnErr
	}
	return &proc.Process{PID: f.helperPID(), StartTime: 1}, nil
}

func (f *FakeHost) ChildrenOf(pid int) ([]*proc.Process, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ChildCalls++
	if f.ChildrenErr != nil {
		return nil, f.ChildrenErr
	}
	if pid != f.helperPID() || f.ChildCalls <= f.ChildrenAfter {
		return nil, nil
	}
	out := make([]*proc.Process, len(f.Children))
	for i, c := range f.Children {
		cp := *c
		out[i] = &cp
	}
	return out, nil
}

func (f *FakeHost) WaitIdle(*proc.Process, time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.IdleCalls++
	if f.IdleErr != nil {
		return false, f.IdleErr
	}
	return f.IdleCalls > f.IdleAfter, nil
}

func (f *FakeHost) SetWindowState(_ *proc.Process, state proc.WindowState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.WindowStates = append(f.WindowStates, state)
	if len(f.WindowErrs) > 0 {
		err := f.WindowErrs[0]
		f.WindowErrs = f.WindowErrs[1:]
		return err
	}
	return nil
}

func (f *FakeHost) Terminate(p *proc.Process) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Terminated = append(f.Terminated, p.PID)
	if f.TerminateErr != nil {
		return f.TerminateErr
	}
	if f.terminated == nil {
		f.terminated = make(map[int]bool)
	}
	f.terminated[p.PID] = true
	return nil
}

func (f *FakeHost) HasExited(p *proc.Process) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ExitErr != nil {
		return false, f.ExitErr
	}
	if f.terminated[p.PID] {
		return true, nil
	}
	after, ok := f.ExitAfter[p.PID]
	if !ok {
		return false, nil
	}
	if f.exitCalls == nil {
		f.exitCalls = make(map[int]int)
	}
	f.exitCalls[p.PID]++
	return f.exitCalls[p.PID] > after, nil
}

// Exit marks pid as exited from now on.
func (f *FakeHost) Exit(pid int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ExitAfter == nil {
		f.ExitAfter = make(map[int]int)
	}
	f.ExitAfter[pid] = 0
}

// WasTerminated reports whether Terminate was called for pid.
func (f *FakeHost) WasTerminated(pid int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.Terminated {
		if t == pid {
			return true
		}
	}
	return false
}
