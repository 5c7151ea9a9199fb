//go:build windows

package proc

import (
	"errors"
	"fmt"
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32               = windows.NewLazySystemDLL("user32.dll")
	procWaitForInputIdle = user32.NewProc("WaitForInputIdle")
	procGetWindow        = user32.NewProc("GetWindow")
	procShowWindow       = user32.NewProc("ShowWindow")
	procSetWindowPos     = user32.NewProc("SetWindowPos")
)

const (
	waitTimeout = 258 // WAIT_TIMEOUT

	gwOwner = 4 // GW_OWNER

	swHide     = 0
	swMinimize = 6

	hwndBottom    = 1
	swpNoSize     = 0x0001
	swpNoActivate = 0x0010
)

type windowsHost struct{}

func newHost() Host { return windowsHost{} }

func (windowsHost) Spawn(c Command) (*Process, error) {
	p, err := startCommand(c)
	if err != nil {
		return nil, err
	}
	if st, err := creationTime(uint32(p.PID)); err == nil {
		p.StartTime = st
	}
	return p, nil
}

func (windowsHost) ChildrenOf(pid int) ([]*Process, error) {
	h, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPPROCESS, 0)
	if err != nil {
		return nil, fmt.Errorf("proc: snapshot failed: %w", err)
	}
	defer windows.CloseHandle(h)

	var entry windows.ProcessEntry32
	entry.Size = uint32(unsafe.Sizeof(entry))
	if err := windows.Process32First(h, &entry); err != nil {
		if errors.Is(err, windows.ERROR_NO_MORE_FILES) {
			return nil, nil
		}
		return nil, fmt.Errorf("proc: Process32First failed: %w", err)
	}

	var out []*Process
	for {
		if int(entry.ParentProcessID) == pid && entry.ProcessID != 0 {
			child := &Process{PID: int(entry.ProcessID)}
			if st, err := creationTime(entry.ProcessID); err == nil {
				child.StartTime = st
			}
			out = append(out, child)
		}
		if err := windows.Process32Next(h, &entry); err != nil {
			break
		}
	}
	return out, nil
}

func (windowsHost) WaitIdle(p *Process, d time.Duration) (bool, error) {
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_INFORMATION|windows.SYNCHRONIZE, false, uint32(p.PID))
	if err != nil {
		return false, fmt.Errorf("proc: OpenProcess %d: %w", p.PID, err)
	}
	defer windows.CloseHandle(h)

	r, _, _ := procWaitForInputIdle.Call(uintptr(h), uintptr(d.Milliseconds()))
	switch uint32(r) {
	case 0:
		return true, nil
	case waitTimeout:
		return false, nil
	default:
		// WAIT_FAILED: console processes have no message queue to idle on.
		return true, nil
	}
}

func (windowsHost) SetWindowState(p *Process, state WindowState) error {
	if state == WindowUntouched {
		return nil
	}
	hwnd, ok := mainWindow(uint32(p.PID))
	if !ok {
		return ErrNoWindow
	}
	switch state {
	case WindowFixed:
		r, _, err := procSetWindowPos.Call(uintptr(hwnd), hwndBottom, 0, 0, 0, 0, swpNoSize|swpNoActivate)
		if r == 0 {
			return fmt.Errorf("proc: SetWindowPos: %w", err)
		}
		procShowWindow.Call(uintptr(hwnd), swMinimize)
	case WindowHidden:
		procShowWindow.Call(uintptr(hwnd), swHide)
	default:
		return fmt.Errorf("proc: unknown window state %v", state)
	}
	return nil
}

func (windowsHost) Terminate(p *Process) error {
	if ok, err := killSpawned(p); ok {
		return err
	}
	h, err := windows.OpenProcess(windows.PROCESS_TERMINATE, false, uint32(p.PID))
	if err != nil {
		if errors.Is(err, windows.ERROR_INVALID_PARAMETER) {
			// No such process.
			return nil
		}
		return fmt.Errorf("proc: OpenProcess %d: %w", p.PID, err)
	}
	defer windows.CloseHandle(h)
	if err := windows.TerminateProcess(h, 1); err != nil && !errors.Is(err, windows.ERROR_ACCESS_DENIED) {
		return fmt.Errorf("proc: TerminateProcess %d: %w", p.PID, err)
	}
	return nil
}

func (windowsHost) HasExited(p *Process) (bool, error) {
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION|windows.SYNCHRONIZE, false, uint32(p.PID))
	if err != nil {
		if errors.Is(err, windows.ERROR_INVALID_PARAMETER) {
			return true, nil
		}
		return false, fmt.Errorf("proc: OpenProcess %d: %w", p.PID, err)
	}
	defer windows.CloseHandle(h)

	if p.StartTime != 0 {
		var creation, exit, kernel, user windows.Filetime
		if err := windows.GetProcessTimes(h, &creation, &exit, &kernel, &user); err == nil {
			if uint64(creation.HighDateTime)<<32|uint64(creation.LowDateTime) != p.StartTime {
				return true, nil
			}
		}
	}

	ev, err := windows.WaitForSingleObject(h, 0)
	if err != nil {
		return false, fmt.Errorf("proc: WaitForSingleObject %d: %w", p.PID, err)
	}
	return ev == windows.WAIT_OBJECT_0, nil
}

// creationTime returns the process creation FILETIME as a single integer.
func creationTime(pid uint32) (uint64, error) {
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, pid)
	if err != nil {
		return 0, fmt.Errorf("OpenProcess failed for pid %d: %w", pid, err)
	}
	defer windows.CloseHandle(h)

	var creation, exit, kernel, user windows.Filetime
	if err := windows.GetProcessTimes(h, &creation, &exit, &kernel, &user); err != nil {
		return 0, fmt.Errorf("GetProcessTimes failed: %w", err)
	}
	return uint64(creation.HighDateTime)<<32 | uint64(creation.LowDateTime), nil
}

// A single EnumWindows callback is shared; its target lives in package state
// guarded by enumMu.
var (
	enumMu     sync.Mutex
	enumPID    uint32
	enumResult windows.HWND
	enumFound  bool
	enumCB     = windows.NewCallback(enumWindowsProc)
)

func enumWindowsProc(hwnd windows.HWND, _ uintptr) uintptr {
	var pid uint32
	if _, err := windows.GetWindowThreadProcessId(hwnd, &pid); err != nil || pid != enumPID {
		return 1
	}
	if !windows.IsWindowVisible(hwnd) {
		return 1
	}
	if owner, _, _ := procGetWindow.Call(uintptr(hwnd), gwOwner); owner != 0 {
		return 1
	}
	enumResult = hwnd
	enumFound = true
	return 0
}

// mainWindow finds the first visible, unowned top-level window of pid.
func mainWindow(pid uint32) (windows.HWND, bool) {
	enumMu.Lock()
	defer enumMu.Unlock()
	enumPID, enumResult, enumFound = pid, 0, false
	// EnumWindows reports an error when the callback stops early.
	_ = windows.EnumWindows(enumCB, nil)
	return enumResult, enumFound
}
