// Package logging configures renderdemo's slog output: a human console
// handler filtered by the verbosity vocabulary, and optional JSON file
// logging with size-based rotation.
package logging

import (
	"fmt"
	"log/slog"
	"strings"
)

// Verbosity levels, ordered. A record is printed when its level is at or
// above the configured one; LevelQuiet is above everything that is logged.
const (
	LevelDebug    = slog.LevelDebug
	LevelInfo     = slog.LevelInfo
	LevelBrief    = slog.Level(1)
	LevelProgress = slog.Level(2)
	LevelWarn     = slog.LevelWarn
	LevelError    = slog.LevelError
	LevelQuiet    = slog.Level(12)
)

var levelNames = []struct {
	name  string
	level slog.Level
}{
	{"debug", LevelDebug},
	{"info", LevelInfo},
	{"brief", LevelBrief},
	{"progress", LevelProgress},
	{"warn", LevelWarn},
	{"error", LevelError},
	{"quiet", LevelQuiet},
}

// ParseLevel accepts debug, info, brief, progress, warn, error and quiet.
func ParseLevel(s string) (slog.Level, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, l := range levelNames {
		if l.name == s {
			return l.level, nil
		}
	}
	return 0, fmt.Errorf("invalid log level: %s (want debug, info, brief, progress, error or quiet)", s)
}

// LevelName is the inverse of ParseLevel; unknown levels use slog's format.
func LevelName(l slog.Level) string {
	for _, n := range levelNames {
		if n.level == l {
			return n.name
		}
	}
	return l.String()
}

// ReplaceLevelAttr renders the custom levels by name in handlers that print
// the level, such as the JSON file handler.
func ReplaceLevelAttr(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey {
		return a
	}
	if l, ok := a.Value.Any().(slog.Level); ok {
		a.Value = slog.StringValue(LevelName(l))
	}
	return a
}
