//go:build !windows

package proc

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// killPID sends SIGKILL to a process we did not spawn. A process that is
// already gone is treated as terminated.
func killPID(pid int) error {
	if pid <= 0 {
		return fmt.Errorf("proc: refusing to signal pid %d", pid)
	}
	err := unix.Kill(pid, unix.SIGKILL)
	if err != nil && !errors.Is(err, unix.ESRCH) {
		return fmt.Errorf("proc: kill %d: %w", pid, err)
	}
	return nil
}

// pidAlive probes pid with signal 0. EPERM means the process exists but
// belongs to another user.
func pidAlive(pid int) (bool, error) {
	err := unix.Kill(pid, 0)
	switch {
	case err == nil, errors.Is(err, unix.EPERM):
		return true, nil
	case errors.Is(err, unix.ESRCH):
		return false, nil
	default:
		return false, fmt.Errorf("proc: probe %d: %w", pid, err)
	}
}
