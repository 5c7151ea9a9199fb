package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// DefaultMinAge is the grace period below which a staging area is never
// considered abandoned, covering the window between a run taking its lock
// and finishing setup.
const DefaultMinAge = time.Hour

// Sweeper removes staging areas, and their game logs, left behind by runs
// that died without cleaning up.
type Sweeper struct {
	// Root is the staging root (paths.temp-dir).
	Root string
	// LogDir is the game directory holding renderdemo_<key>.log files. If
	// empty, logs are left alone.
	LogDir string
	// MinAge is the minimum age of a staging area before it may be removed.
	// Zero means DefaultMinAge.
	MinAge time.Duration
	// DryRun reports what would be removed without touching the filesystem.
	DryRun bool
	// Now is the clock (default time.Now).
	Now func() time.Time
}

// SweepReport lists the keys removed and skipped by a sweep.
type SweepReport struct {
	Removed []string
	Skipped []string
}

// Sweep scans Root once. A staging area is removed only if its lock can be
// taken, so a live run is never disturbed.
func (s *Sweeper) Sweep() (*SweepReport, error) {
	var report SweepReport

	entries, err := os.ReadDir(s.Root)
	if err != nil {
		if os.IsNotExist(err) {
			return &report, nil
		}
		return nil, fmt.Errorf("failed to read temp root %q: %w", s.Root, err)
	}

	globalLock, ok, err := AcquireLockHandle(filepath.Join(s.Root, "sweep.lock"))
	if err != nil {
		return nil, fmt.Errorf("failed to acquire sweep lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("another sweep is running: %w", ErrWouldBlock)
	}
	defer ReleaseLockHandle(globalLock)

	// A key may have a directory, a lock file, or both.
	modTimes := make(map[string]time.Time)
	for _, e := range entries {
		key := e.Name()
		if !e.IsDir() {
			if !strings.HasSuffix(key, ".lock") {
				continue
			}
			key = strings.TrimSuffix(key, ".lock")
		}
		if !IsRunKey(key) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			report.Skipped = append(report.Skipped, key)
			continue
		}
		if t, seen := modTimes[key]; !seen || info.ModTime().After(t) {
			modTimes[key] = info.ModTime()
		}
	}

	keys := make([]string, 0, len(modTimes))
	for k := range modTimes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	minAge := s.MinAge
	if minAge <= 0 {
		minAge = DefaultMinAge
	}

	for _, key := range keys {
		if now().Sub(modTimes[key]) < minAge {
			report.Skipped = append(report.Skipped, key)
			continue
		}
		if s.DryRun {
			report.Removed = append(report.Removed, key)
			continue
		}
		if s.remove(key) {
			report.Removed = append(report.Removed, key)
		} else {
			report.Skipped = append(report.Skipped, key)
		}
	}

	return &report, nil
}

// remove deletes one abandoned staging area while holding its lock.
func (s *Sweeper) remove(key string) bool {
	f, ok, err := AcquireLockHandle(lockFilePath(s.Root, key))
	if err != nil || !ok {
		return false
	}

	if err := os.RemoveAll(filepath.Join(s.Root, key)); err != nil {
		// Leave the lock artifact so the next sweep retries.
		_ = f.Close()
		return false
	}
	if s.LogDir != "" {
		if err := os.Remove(filepath.Join(s.LogDir, LogFileName(key))); err != nil && !os.IsNotExist(err) {
			_ = f.Close()
			return false
		}
	}
	_ = ReleaseLockHandle(f)
	return true
}
