package command

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// console is the interactive side of a command: the overwrite question and
// the test mode pause.
type console struct {
	in   *bufio.Reader
	file *os.File // set when input is a real file, for raw mode
	out  io.Writer
}

func newConsole(in io.Reader, out io.Writer) *console {
	c := &console{in: bufio.NewReader(in), out: out}
	if f, ok := in.(*os.File); ok {
		c.file = f
	}
	return c
}

// confirmOverwrite asks whether path may be overwritten until it gets a yes
// or a no. End of input counts as no.
func (c *console) confirmOverwrite(path string) (bool, error) {
	for {
		_, _ = fmt.Fprintf(c.out, "Output file '%s' already exists.\nOverwrite? [y/n]\n", path)
		line, err := c.in.ReadString('\n')
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return false, nil
			}
			return false, err
		}
	}
}

// waitForKey pauses until a key is pressed. On a terminal a single key
// press is enough; otherwise a whole line is consumed.
func (c *console) waitForKey() error {
	_, _ = fmt.Fprint(c.out, "Test mode is on. Press any key to start . . .")
	defer fmt.Fprint(c.out, "\n")

	if c.file != nil && term.IsTerminal(int(c.file.Fd())) {
		state, err := term.MakeRaw(int(c.file.Fd()))
		if err != nil {
			return fmt.Errorf("failed to set raw mode: %w", err)
		}
		defer term.Restore(int(c.file.Fd()), state)
		_, err = c.in.ReadByte()
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}

	_, err := c.in.ReadString('\n')
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
