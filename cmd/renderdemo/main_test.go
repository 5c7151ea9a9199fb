package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/joeycumines/renderdemo/internal/config"
)

func runArgs(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	t.Setenv(config.EnvConfigPath, filepath.Join(t.TempDir(), "config"))
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, strings.NewReader(""), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun(t *testing.T) {
	t.Run("no command shows help", func(t *testing.T) {
		code, out, _ := runArgs(t)
		assert.Equal(t, 0, code)
		assert.Contains(t, out, "Available commands:")
		assert.Contains(t, out, "render")
	})

	t.Run("help flag", func(t *testing.T) {
		code, out, _ := runArgs(t, "--help")
		assert.Equal(t, 0, code)
		assert.Contains(t, out, "Usage: renderdemo <command>")
	})

	t.Run("version command", func(t *testing.T) {
		code, out, _ := runArgs(t, "version")
		assert.Equal(t, 0, code)
		assert.Equal(t, "renderdemo version "+version+"\n", out)
	})

	t.Run("unknown command", func(t *testing.T) {
		code, _, errOut := runArgs(t, "nonexistent")
		assert.Equal(t, 2, code)
		assert.Contains(t, errOut, "Unknown command: nonexistent")
	})

	t.Run("bad flag", func(t *testing.T) {
		code, _, _ := runArgs(t, "render", "-nope")
		assert.Equal(t, 2, code)
	})

	t.Run("render without flags", func(t *testing.T) {
		code, out, _ := runArgs(t, "render")
		assert.Equal(t, 0, code)
		assert.Contains(t, out, "Try 'renderdemo help render' for more information.")
	})

	t.Run("invalid render input exits cleanly", func(t *testing.T) {
		dir := t.TempDir()
		code, _, errOut := runArgs(t, "render", "-configdir", dir, "-demo", "x")
		assert.Equal(t, 0, code)
		assert.Contains(t, errOut, "Missing file")
	})
}
