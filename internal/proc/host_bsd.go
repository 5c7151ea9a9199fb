//go:build !linux && !windows

package proc

import (
	"bufio"
	"bytes"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// psHost covers the remaining Unix platforms by shelling out to ps(1), which
// is present on every BSD and on macOS.
type psHost struct{}

func newHost() Host { return psHost{} }

func (psHost) Spawn(c Command) (*Process, error) { return startCommand(c) }

func (psHost) ChildrenOf(pid int) ([]*Process, error) {
	out, err := exec.Command("ps", "-A", "-o", "pid=,ppid=,stat=").Output()
	if err != nil {
		return nil, fmt.Errorf("proc: ps: %w", err)
	}
	return parsePS(out, pid), nil
}

func parsePS(out []byte, parent int) []*Process {
	var children []*Process
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		f := strings.Fields(sc.Text())
		if len(f) < 3 {
			continue
		}
		pid, err1 := strconv.Atoi(f[0])
		ppid, err2 := strconv.Atoi(f[1])
		if err1 != nil || err2 != nil || ppid != parent {
			continue
		}
		if strings.HasPrefix(f[2], "Z") {
			continue
		}
		children = append(children, &Process{PID: pid})
	}
	return children
}

func (psHost) WaitIdle(*Process, time.Duration) (bool, error) { return true, nil }

func (psHost) SetWindowState(*Process, WindowState) error { return ErrUnsupported }

func (psHost) Terminate(p *Process) error {
	if ok, err := killSpawned(p); ok {
		return err
	}
	return killPID(p.PID)
}

func (psHost) HasExited(p *Process) (bool, error) {
	alive, err := pidAlive(p.PID)
	return !alive, err
}
