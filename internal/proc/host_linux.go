//go:build linux

package proc

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// procRoot is the procfs mount point; tests point it at a fixture tree.
var procRoot = "/proc"

// procStat contains the fields of /proc/[pid]/stat renderdemo cares about.
type procStat struct {
	PID       int
	Comm      string
	State     rune
	PPID      int
	StartTime uint64
}

type linuxHost struct{}

func newHost() Host { return linuxHost{} }

func (linuxHost) Spawn(c Command) (*Process, error) {
	p, err := startCommand(c)
	if err != nil {
		return nil, err
	}
	if st, err := readProcStat(p.PID); err == nil {
		p.StartTime = st.StartTime
	}
	return p, nil
}

func (linuxHost) ChildrenOf(pid int) ([]*Process, error) {
	entries, err := os.ReadDir(procRoot)
	if err != nil {
		return nil, fmt.Errorf("proc: read %s: %w", procRoot, err)
	}
	var out []*Process
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		child, err := strconv.Atoi(e.Name())
		if err != nil {
			continue
		}
		st, err := readProcStat(child)
		if err != nil {
			// Raced with exit, or unreadable; either way not a candidate.
			continue
		}
		if st.PPID != pid || isDead(st.State) {
			continue
		}
		out = append(out, &Process{PID: st.PID, StartTime: st.StartTime})
	}
	return out, nil
}

// WaitIdle reports true immediately: Linux has no input-idle notion.
func (linuxHost) WaitIdle(*Process, time.Duration) (bool, error) {
	return true, nil
}

func (linuxHost) SetWindowState(*Process, WindowState) error {
	return ErrUnsupported
}

func (linuxHost) Terminate(p *Process) error {
	if ok, err := killSpawned(p); ok {
		return err
	}
	return killPID(p.PID)
}

func (linuxHost) HasExited(p *Process) (bool, error) {
	st, err := readProcStat(p.PID)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return true, nil
		}
		return false, err
	}
	if isDead(st.State) {
		return true, nil
	}
	if p.StartTime != 0 && st.StartTime != p.StartTime {
		// The PID now belongs to someone else.
		return true, nil
	}
	return false, nil
}

// isDead reports zombie and dead states; a zombie has exited but not been
// reaped by its (possibly vanished) parent yet.
func isDead(state rune) bool {
	return state == 'Z' || state == 'X' || state == 'x'
}

// readProcStat parses /proc/[pid]/stat.
func readProcStat(pid int) (*procStat, error) {
	data, err := os.ReadFile(fmt.Sprintf("%s/%d/stat", procRoot, pid))
	if err != nil {
		return nil, err
	}
	return parseProcStat(pid, data)
}

func parseProcStat(pid int, data []byte) (*procStat, error) {
	// The comm field may itself contain spaces and parentheses, so split on
	// the LAST closing paren.
	lastParen := bytes.LastIndexByte(data, ')')
	if lastParen == -1 || lastParen < 2 {
		return nil, fmt.Errorf("malformed stat: missing closing paren for pid %d", pid)
	}
	firstSpace := bytes.IndexByte(data, ' ')
	if firstSpace == -1 || firstSpace >= lastParen {
		return nil, fmt.Errorf("malformed stat: missing initial space for pid %d", pid)
	}
	if len(data) <= firstSpace+1 || data[firstSpace+1] != '(' {
		return nil, fmt.Errorf("malformed stat: expected '(' for pid %d", pid)
	}
	parsedPid, err := strconv.Atoi(string(data[:firstSpace]))
	if err != nil || parsedPid != pid {
		return nil, fmt.Errorf("pid mismatch for %d", pid)
	}
	if len(data) <= lastParen+2 {
		return nil, fmt.Errorf("stat truncated for pid %d", pid)
	}

	// Field indices after comm: 0=state, 1=ppid, ..., 19=starttime
	fields := strings.Fields(string(data[lastParen+2:]))
	if len(fields) < 20 {
		return nil, fmt.Errorf("stat too short for pid %d", pid)
	}
	if len(fields[0]) == 0 {
		return nil, fmt.Errorf("empty state field for pid %d", pid)
	}
	ppid, err := strconv.Atoi(fields[1])
	if err != nil {
		return nil, fmt.Errorf("failed to parse ppid: %w", err)
	}
	startTime, err := strconv.ParseUint(fields[19], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse starttime: %w", err)
	}
	return &procStat{
		PID:       pid,
		Comm:      string(data[firstSpace+2 : lastParen]),
		State:     rune(fields[0][0]),
		PPID:      ppid,
		StartTime: startTime,
	}, nil
}
