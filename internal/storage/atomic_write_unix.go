//go:build !windows

package storage

import (
	"fmt"
)

// atomicRenameWindows is never reached outside Windows.
func atomicRenameWindows(oldpath, newpath string) error {
	return fmt.Errorf("atomicRenameWindows called on non-Windows platform")
}
