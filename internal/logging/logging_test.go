package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()
	for name, want := range map[string]slog.Level{
		"debug": LevelDebug, "INFO": LevelInfo, "brief": LevelBrief,
		"progress": LevelProgress, " error ": LevelError, "quiet": LevelQuiet,
	} {
		got, err := ParseLevel(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}
	_, err := ParseLevel("loud")
	assert.ErrorContains(t, err, "invalid log level")

	assert.Equal(t, "brief", LevelName(LevelBrief))
	assert.Equal(t, "INFO+3", LevelName(slog.Level(3)))
}

func TestLevelOrdering(t *testing.T) {
	t.Parallel()
	levels := []slog.Level{LevelDebug, LevelInfo, LevelBrief, LevelProgress, LevelWarn, LevelError, LevelQuiet}
	for i := 1; i < len(levels); i++ {
		assert.Less(t, levels[i-1], levels[i])
	}
}

func TestConsoleHandler_FiltersByVerbosity(t *testing.T) {
	t.Parallel()
	var out bytes.Buffer
	logger := slog.New(NewConsoleHandler(&out, ConsoleOptions{Level: LevelBrief}))

	logger.Debug("hidden debug", "k", 1)
	logger.Info("Demo: demos/match.dem")
	logger.Log(context.Background(), LevelBrief, "Starting SDR launcher...")
	logger.Log(context.Background(), LevelProgress, "Recording finished successfully.", Tone(ToneSuccess))

	assert.Equal(t, "Starting SDR launcher...\nRecording finished successfully.\n", out.String())
}

func TestConsoleHandler_QuietDropsErrors(t *testing.T) {
	t.Parallel()
	var out bytes.Buffer
	logger := slog.New(NewConsoleHandler(&out, ConsoleOptions{Level: LevelQuiet}))
	logger.Error("ERROR: something")
	assert.Empty(t, out.String())
}

func TestConsoleHandler_AttrsAndGroups(t *testing.T) {
	t.Parallel()
	var out bytes.Buffer
	logger := slog.New(NewConsoleHandler(&out, ConsoleOptions{Level: LevelDebug}))

	logger.With("run", "0123456789abcdef").WithGroup("proc").Debug("helper started", "pid", 42)
	assert.Equal(t, "helper started run=0123456789abcdef proc.pid=42\n", out.String())
}

func TestConsoleHandler_ErrorsToErrWriter(t *testing.T) {
	t.Parallel()
	var out, errOut bytes.Buffer
	logger := slog.New(NewConsoleHandler(&out, ConsoleOptions{Err: &errOut}))

	logger.Info("fine")
	logger.Error("ERROR: Couldn't copy demo", "error", "disk full")
	assert.Equal(t, "fine\n", out.String())
	assert.Equal(t, "ERROR: Couldn't copy demo error=disk full\n", errOut.String())
}

func TestConsoleHandler_Colour(t *testing.T) {
	t.Parallel()
	var out bytes.Buffer
	r := lipgloss.NewRenderer(&out)
	r.SetColorProfile(termenv.ANSI)
	logger := slog.New(NewConsoleHandler(&out, ConsoleOptions{Renderer: r}))

	logger.Info("Recording finished successfully.", Tone(ToneSuccess))
	assert.Contains(t, out.String(), "\x1b[")
	assert.Contains(t, out.String(), "Recording finished successfully.")
	assert.NotContains(t, out.String(), "tone=")
}

func TestFanout(t *testing.T) {
	t.Parallel()
	var a, b bytes.Buffer
	h := Fanout(
		NewConsoleHandler(&a, ConsoleOptions{Level: LevelError}),
		nil,
		NewConsoleHandler(&b, ConsoleOptions{Level: LevelDebug}),
	)
	logger := slog.New(h).With("x", 1)
	logger.Debug("one")
	logger.Error("two")

	assert.Equal(t, "two x=1\n", a.String())
	assert.Equal(t, "one x=1\ntwo x=1\n", b.String())

	single := NewConsoleHandler(&a, ConsoleOptions{})
	assert.Same(t, single, Fanout(single, nil))
}

func TestRotatingFileWriter(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "logs", "renderdemo.log")
	w, err := newRotatingFileWriter(path, 50, 2)
	require.NoError(t, err)

	line := func(c string) []byte { return []byte(strings.Repeat(c, 39) + "\n") }
	for _, c := range []string{"A", "B", "C", "D"} {
		n, err := w.Write(line(c))
		require.NoError(t, err)
		assert.Equal(t, 40, n)
	}
	require.NoError(t, w.Close())

	read := func(p string) string {
		data, err := os.ReadFile(p)
		require.NoError(t, err)
		return string(data)
	}
	assert.Equal(t, string(line("D")), read(path))
	assert.Equal(t, string(line("C")), read(path+".1"))
	assert.Equal(t, string(line("B")), read(path+".2"))
	assert.NoFileExists(t, path+".3")

	_, err = w.Write([]byte("late"))
	assert.ErrorIs(t, err, os.ErrClosed)
}

func TestRotatingFileWriter_NoBackups(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "renderdemo.log")
	w, err := newRotatingFileWriter(path, 10, 0)
	require.NoError(t, err)
	defer w.Close()

	_, err = w.Write([]byte("first line\n"))
	require.NoError(t, err)
	_, err = w.Write([]byte("second\n"))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second\n", string(data))
	assert.NoFileExists(t, path+".1")
}

func TestRotatingFileWriter_AppendsToExisting(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "renderdemo.log")
	require.NoError(t, os.WriteFile(path, []byte("old\n"), 0644))

	w, err := NewRotatingFileWriter(path, 1, 1)
	require.NoError(t, err)
	_, err = w.Write([]byte("new\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "old\nnew\n", string(data))
}

func TestNew_FileLogging(t *testing.T) {
	t.Parallel()
	var stdout bytes.Buffer
	path := filepath.Join(t.TempDir(), "renderdemo.log")
	logger, closer, err := New(Options{
		Level:     LevelBrief,
		Color:     ColorNever,
		Stdout:    &stdout,
		File:      path,
		FileLevel: LevelDebug,
		MaxSizeMB: 1,
		MaxFiles:  1,
	})
	require.NoError(t, err)

	logger.Debug("game process found", "pid", 2000)
	logger.Log(context.Background(), LevelBrief, "Starting SDR launcher...")
	require.NoError(t, closer.Close())

	assert.Equal(t, "Starting SDR launcher...\n", stdout.String())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &rec))
	assert.Equal(t, "brief", rec["level"])
	assert.Equal(t, "Starting SDR launcher...", rec["msg"])
}

func TestNew_PlainWhenNotATerminal(t *testing.T) {
	t.Parallel()
	var stdout bytes.Buffer
	logger, closer, err := New(Options{Stdout: &stdout})
	require.NoError(t, err)
	defer closer.Close()

	logger.Info("ok", Tone(ToneSuccess))
	assert.Equal(t, "ok\n", stdout.String())
}

func TestParseColorMode(t *testing.T) {
	t.Parallel()
	m, err := ParseColorMode("")
	require.NoError(t, err)
	assert.Equal(t, ColorAuto, m)
	m, err = ParseColorMode("Always")
	require.NoError(t, err)
	assert.Equal(t, ColorAlways, m)
	_, err = ParseColorMode("rainbow")
	assert.Error(t, err)
}
