//go:build unix

package command

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/creack/pty"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/term"

	"github.com/joeycumines/renderdemo/internal/testutil"
)

func TestWaitForKey_Terminal(t *testing.T) {
	ptmx, tty, err := pty.Open()
	if err != nil {
		t.Skipf("no pty available: %v", err)
	}
	defer ptmx.Close()
	defer tty.Close()

	before, err := term.GetState(int(tty.Fd()))
	require.NoError(t, err)

	var out bytes.Buffer
	c := newConsole(tty, &out)
	done := make(chan error, 1)
	go func() { done <- c.waitForKey() }()

	raw := func() bool {
		st, err := term.GetState(int(tty.Fd()))
		return err == nil && *st != *before
	}
	require.NoError(t, testutil.Poll(context.Background(), raw, 5*time.Second, 10*time.Millisecond),
		"terminal never entered raw mode")

	// A single key without a newline is only delivered in raw mode.
	_, err = ptmx.Write([]byte("k"))
	require.NoError(t, err)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("waitForKey did not return after a key press")
	}
	assert.Equal(t, "Test mode is on. Press any key to start . . .\n", out.String())

	after, err := term.GetState(int(tty.Fd()))
	require.NoError(t, err)
	assert.Equal(t, before, after, "terminal mode restored")
}

func TestConfirmOverwrite_Terminal(t *testing.T) {
	ptmx, tty, err := pty.Open()
	if err != nil {
		t.Skipf("no pty available: %v", err)
	}
	defer ptmx.Close()
	defer tty.Close()

	var out bytes.Buffer
	c := newConsole(tty, &out)
	type result struct {
		ok  bool
		err error
	}
	done := make(chan result, 1)
	go func() {
		ok, err := c.confirmOverwrite("clip.avi")
		done <- result{ok, err}
	}()

	_, err = ptmx.Write([]byte("y\n"))
	require.NoError(t, err)

	select {
	case r := <-done:
		require.NoError(t, r.err)
		assert.True(t, r.ok)
	case <-time.After(5 * time.Second):
		t.Fatal("confirmOverwrite did not return")
	}
}
