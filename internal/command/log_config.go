package command

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/joeycumines/renderdemo/internal/config"
	"github.com/joeycumines/renderdemo/internal/logging"
)

// resolveLogOptions builds logging options for a command. Flag values take
// precedence; config values (and their env overrides) are used when a flag
// is empty.
func resolveLogOptions(cfg *config.Config, flagLevel, flagColor string, stdout, stderr io.Writer) (logging.Options, error) {
	schema := config.DefaultSchema()
	o := logging.Options{Stdout: stdout, Stderr: stderr}

	levelStr := flagLevel
	if levelStr == "" {
		levelStr = schema.Resolve(cfg, "log.level")
	}
	level, err := logging.ParseLevel(levelStr)
	if err != nil {
		return o, err
	}
	o.Level = level

	colorStr := flagColor
	if colorStr == "" {
		colorStr = schema.Resolve(cfg, "color")
	}
	if o.Color, err = logging.ParseColorMode(colorStr); err != nil {
		return o, err
	}

	o.File = schema.ResolvePath(cfg, "log.file")
	if o.File == "" {
		return o, nil
	}
	if o.FileLevel, err = logging.ParseLevel(schema.Resolve(cfg, "log.file-level")); err != nil {
		return o, fmt.Errorf("log.file-level: %w", err)
	}
	if o.MaxSizeMB, err = schema.ResolveInt(cfg, "log.max-size-mb"); err != nil {
		return o, err
	}
	if o.MaxSizeMB <= 0 {
		o.MaxSizeMB = 10
	}
	if o.MaxFiles, err = schema.ResolveInt(cfg, "log.max-files"); err != nil {
		return o, err
	}
	// Zero MaxFiles is valid (no backups, just truncate on rotate).
	if o.MaxFiles < 0 {
		o.MaxFiles = 5
	}
	return o, nil
}

// newLogger is resolveLogOptions followed by logging.New. On failure the
// returned logger still prints to the console at info level, so the caller
// can report the problem.
func newLogger(cfg *config.Config, flagLevel, flagColor string, stdout, stderr io.Writer) (*slog.Logger, io.Closer, error) {
	o, err := resolveLogOptions(cfg, flagLevel, flagColor, stdout, stderr)
	if err == nil {
		var logger *slog.Logger
		var closer io.Closer
		if logger, closer, err = logging.New(o); err == nil {
			return logger, closer, nil
		}
	}
	fallback, closer, _ := logging.New(logging.Options{Level: logging.LevelInfo, Color: logging.ColorNever, Stdout: stdout, Stderr: stderr})
	return fallback, closer, err
}
