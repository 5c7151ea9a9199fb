package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

// runKeyPattern matches the run keys that name staging areas and logs.
var runKeyPattern = regexp.MustCompile(`^[0-9a-f]{16}$`)

// IsRunKey reports whether s has the shape of a run key.
func IsRunKey(s string) bool { return runKeyPattern.MatchString(s) }

// LogFileName is the console log file the game writes for a run, relative to
// the game directory.
func LogFileName(key string) string { return "renderdemo_" + key + ".log" }

// lockFilePath is the ownership lock for the staging area named key.
func lockFilePath(root, key string) string { return filepath.Join(root, key+".lock") }

// historyFileName names a persisted RunRecord.
func historyFileName(key string) string { return key + ".run.json" }

// userDirectory is overridden by tests that must not touch the real home
// directory.
var userDirectory = UserDirectory

// UserDirectory returns ~/.renderdemo, the home of the config file and the
// default history directory.
func UserDirectory() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, ".renderdemo"), nil
}

// DefaultHistoryDirectory returns ~/.renderdemo/history.
func DefaultHistoryDirectory() (string, error) {
	dir, err := userDirectory()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "history"), nil
}

// DefaultTempRoot is where staging areas go when paths.temp-dir is unset.
func DefaultTempRoot() string {
	return filepath.Join(os.TempDir(), "renderdemo")
}
