package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRunKey(t *testing.T) {
	t.Parallel()
	assert.True(t, IsRunKey("0123456789abcdef"))
	assert.False(t, IsRunKey("0123456789ABCDEF"))
	assert.False(t, IsRunKey("0123456789abcde"))
	assert.False(t, IsRunKey("sweep"))
}

func TestLogFileName(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "renderdemo_0123456789abcdef.log", LogFileName("0123456789abcdef"))
}

func TestDefaultHistoryDirectory(t *testing.T) {
	dir := t.TempDir()
	old := userDirectory
	userDirectory = func() (string, error) { return dir, nil }
	t.Cleanup(func() { userDirectory = old })

	got, err := DefaultHistoryDirectory()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "history"), got)
}
