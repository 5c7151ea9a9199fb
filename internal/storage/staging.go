package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// StagingArea is the run-private directory <root>/<key>. It is owned through
// an exclusive lock on <root>/<key>.lock for as long as the run lives, which
// is how a sweep tells live runs from abandoned ones.
type StagingArea struct {
	Key      string
	Root     string
	Dir      string
	LockPath string

	// RemoveAll deletes the directory on Release (default os.RemoveAll).
	RemoveAll func(string) error

	lock    *os.File
	once    sync.Once
	release error
}

// CreateStagingArea locks and creates the staging area for key under root.
// It fails if the key is already taken, locked or not.
func CreateStagingArea(root, key string) (*StagingArea, error) {
	if !IsRunKey(key) {
		return nil, fmt.Errorf("invalid run key %q", key)
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create temp root: %w", err)
	}

	lockPath := lockFilePath(root, key)
	f, ok, err := AcquireLockHandle(lockPath)
	if err != nil {
		return nil, fmt.Errorf("failed to lock staging area %s: %w", key, err)
	}
	if !ok {
		return nil, fmt.Errorf("staging area %s is in use: %w", key, ErrWouldBlock)
	}

	dir := filepath.Join(root, key)
	if err := os.Mkdir(dir, 0755); err != nil {
		_ = ReleaseLockHandle(f)
		return nil, fmt.Errorf("failed to create staging area: %w", err)
	}

	return &StagingArea{
		Key:      key,
		Root:     root,
		Dir:      dir,
		LockPath: lockPath,
		lock:     f,
	}, nil
}

// Path joins elem onto the staging directory.
func (s *StagingArea) Path(elem ...string) string {
	return filepath.Join(append([]string{s.Dir}, elem...)...)
}

// Import copies the file at src to rel inside the staging area, creating
// parent directories as needed.
func (s *StagingArea) Import(src, rel string) (err error) {
	dst := s.Path(rel)
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(dst), err)
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", dst, cerr)
		}
	}()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return nil
}

// Release removes the staging directory and then drops the lock. Only the
// first call does any work; later calls return the first result.
func (s *StagingArea) Release() error {
	s.once.Do(func() {
		removeAll := s.RemoveAll
		if removeAll == nil {
			removeAll = os.RemoveAll
		}
		err1 := removeAll(s.Dir)
		var err2 error
		if err1 == nil {
			err2 = ReleaseLockHandle(s.lock)
		} else {
			// Keep the lock file so a later sweep can still find the leftovers.
			err2 = s.lock.Close()
		}
		s.release = errors.Join(err1, err2)
	})
	return s.release
}
