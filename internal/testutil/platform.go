// Package testutil holds fixtures and helpers shared by renderdemo tests.
package testutil

import (
	"os"
	"runtime"
	"testing"
)

// Platform captures the current test execution environment.
type Platform struct {
	IsUnix    bool
	IsWindows bool
	IsRoot    bool
	UID       int
}

// DetectPlatform inspects the current runtime environment.
func DetectPlatform(t *testing.T) Platform {
	t.Helper()
	uid := os.Geteuid()
	return Platform{
		IsUnix:    runtime.GOOS != "windows",
		IsWindows: runtime.GOOS == "windows",
		IsRoot:    uid == 0,
		UID:       uid,
	}
}

// SkipIfRoot skips tests that simulate permission failures root bypasses.
func SkipIfRoot(t *testing.T, platform Platform, reason string) {
	t.Helper()
	if platform.IsRoot {
		t.Skipf("Skipping test - %s (requires non-root user, running as UID 0)", reason)
	}
}

// SkipIfWindows skips tests that need a Unix PTY or Unix permissions.
func SkipIfWindows(t *testing.T, platform Platform, reason string) {
	t.Helper()
	if platform.IsWindows {
		t.Skipf("Skipping test - %s (Windows platform detected)", reason)
	}
}
