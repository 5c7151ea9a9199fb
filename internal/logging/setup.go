package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// ColorMode is the "color" setting: auto, always or never.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"
	ColorAlways ColorMode = "always"
	ColorNever  ColorMode = "never"
)

// ParseColorMode accepts auto (or empty), always and never.
func ParseColorMode(s string) (ColorMode, error) {
	switch m := ColorMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ColorAuto, nil
	case ColorAuto, ColorAlways, ColorNever:
		return m, nil
	default:
		return "", fmt.Errorf("invalid color mode: %s (want auto, always or never)", s)
	}
}

// Options describes the logger to build.
type Options struct {
	// Level is the console verbosity.
	Level slog.Level
	Color ColorMode
	// Stdout and Stderr receive console output.
	Stdout io.Writer
	Stderr io.Writer

	// File enables JSON logging to a rotating file when non-empty.
	File      string
	FileLevel slog.Level
	MaxSizeMB int
	MaxFiles  int
}

// New builds the logger described by o. The returned closer releases the
// log file, if any, and must be called when done.
func New(o Options) (*slog.Logger, io.Closer, error) {
	stdout := o.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	console := NewConsoleHandler(stdout, ConsoleOptions{
		Level:    o.Level,
		Err:      o.Stderr,
		Renderer: renderer(stdout, o.Color),
	})

	if o.File == "" {
		return slog.New(console), nopCloser{}, nil
	}
	w, err := NewRotatingFileWriter(o.File, o.MaxSizeMB, o.MaxFiles)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file %s: %w", o.File, err)
	}
	file := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       o.FileLevel,
		ReplaceAttr: ReplaceLevelAttr,
	})
	return slog.New(Fanout(console, file)), w, nil
}

// renderer returns a colour renderer for w, or nil when output stays plain.
func renderer(w io.Writer, mode ColorMode) *lipgloss.Renderer {
	switch mode {
	case ColorNever:
		return nil
	case ColorAlways:
		r := lipgloss.NewRenderer(w)
		r.SetColorProfile(termenv.ANSI)
		return r
	}
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) || os.Getenv("NO_COLOR") != "" {
		return nil
	}
	return lipgloss.NewRenderer(w)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
