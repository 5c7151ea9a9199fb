package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

// RotatingFileWriter appends to a log file and rotates it by size. On
// rotation path becomes path.1, path.1 becomes path.2 and so on; backups
// beyond the retention count are removed. Safe for concurrent use.
type RotatingFileWriter struct {
	mu      sync.Mutex
	path    string
	limit   int64
	backups int
	size    int64
	file    *os.File
}

var _ io.WriteCloser = (*RotatingFileWriter)(nil)

// NewRotatingFileWriter opens path for appending, creating its directory.
// maxSizeMB is clamped to at least 1 and backups to at least 0 (rotation
// then just truncates).
func NewRotatingFileWriter(path string, maxSizeMB, backups int) (*RotatingFileWriter, error) {
	return newRotatingFileWriter(path, int64(max(maxSizeMB, 1))<<20, max(backups, 0))
}

func newRotatingFileWriter(path string, limit int64, backups int) (*RotatingFileWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}
	w := &RotatingFileWriter{path: path, limit: limit, backups: backups}
	if err := w.open(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *RotatingFileWriter) open() error {
	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("logging: %w", err)
	}
	w.file, w.size = f, info.Size()
	return nil
}

// Write never splits p across files; a record that would overflow a
// non-empty file goes to a fresh one.
func (w *RotatingFileWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return 0, os.ErrClosed
	}
	if w.size > 0 && w.size+int64(len(p)) > w.limit {
		if err := w.rotate(); err != nil {
			return 0, fmt.Errorf("logging: rotate %s: %w", w.path, err)
		}
	}
	n, err := w.file.Write(p)
	w.size += int64(n)
	return n, err
}

func (w *RotatingFileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

func (w *RotatingFileWriter) backup(n int) string {
	return w.path + "." + strconv.Itoa(n)
}

func (w *RotatingFileWriter) rotate() error {
	if err := w.file.Close(); err != nil {
		return err
	}
	w.file = nil

	// The oldest slot is dropped; every other backup shifts up by one.
	if w.backups > 0 {
		_ = os.Remove(w.backup(w.backups))
	}
	for n := w.backups - 1; n >= 1; n-- {
		if err := os.Rename(w.backup(n), w.backup(n+1)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	if w.backups > 0 {
		if err := os.Rename(w.path, w.backup(1)); err != nil {
			return err
		}
	} else if err := os.Remove(w.path); err != nil {
		return err
	}
	return w.open()
}
