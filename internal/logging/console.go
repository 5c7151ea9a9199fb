package logging

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// ToneKey is the attribute that colours a console message. Its value is one
// of the Tone constants; the attribute itself is never printed.
const ToneKey = "tone"

// Tones.
const (
	ToneSuccess = "success"
	ToneWarning = "warning"
	ToneFailure = "failure"
)

// Tone returns the attribute selecting tone t.
func Tone(t string) slog.Attr { return slog.String(ToneKey, t) }

// ConsoleHandler prints one plain line per record: the message followed by
// any attributes as key=value. Records at LevelError and above go to the
// error writer when one is set.
type ConsoleHandler struct {
	mu     *sync.Mutex
	out    io.Writer
	err    io.Writer
	level  slog.Leveler
	styles *consoleStyles
	attrs  []slog.Attr
	groups []string
}

type consoleStyles struct {
	success lipgloss.Style
	warning lipgloss.Style
	failure lipgloss.Style
	faint   lipgloss.Style
}

// ConsoleOptions configures NewConsoleHandler.
type ConsoleOptions struct {
	Level slog.Leveler
	// Err receives error records; nil means Out.
	Err io.Writer
	// Renderer enables colour; nil prints plain text.
	Renderer *lipgloss.Renderer
}

// NewConsoleHandler returns a ConsoleHandler writing to out.
func NewConsoleHandler(out io.Writer, opts ConsoleOptions) *ConsoleHandler {
	h := &ConsoleHandler{mu: new(sync.Mutex), out: out, err: opts.Err, level: opts.Level}
	if h.level == nil {
		h.level = LevelInfo
	}
	if r := opts.Renderer; r != nil {
		h.styles = &consoleStyles{
			success: r.NewStyle().Foreground(lipgloss.Color("2")),
			warning: r.NewStyle().Foreground(lipgloss.Color("3")),
			failure: r.NewStyle().Foreground(lipgloss.Color("1")),
			faint:   r.NewStyle().Faint(true),
		}
	}
	return h
}

func (h *ConsoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *ConsoleHandler) Handle(_ context.Context, r slog.Record) error {
	tone := ""
	if r.Level >= LevelError {
		tone = ToneFailure
	} else if r.Level >= LevelWarn {
		tone = ToneWarning
	}

	var attrs bytes.Buffer
	appendAttr := func(a slog.Attr) {
		if a.Key == ToneKey {
			tone = a.Value.String()
			return
		}
		a.Value = a.Value.Resolve()
		if a.Equal(slog.Attr{}) {
			return
		}
		attrs.WriteByte(' ')
		attrs.WriteString(a.Key)
		attrs.WriteByte('=')
		attrs.WriteString(a.Value.String())
	}
	for _, a := range h.attrs {
		appendAttr(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		appendAttr(h.qualify(a))
		return true
	})

	msg := r.Message
	extra := attrs.String()
	if h.styles != nil {
		switch tone {
		case ToneSuccess:
			msg = h.styles.success.Render(msg)
		case ToneWarning:
			msg = h.styles.warning.Render(msg)
		case ToneFailure:
			msg = h.styles.failure.Render(msg)
		}
		if extra != "" {
			extra = h.styles.faint.Render(extra)
		}
	}

	w := h.out
	if r.Level >= LevelError && h.err != nil {
		w = h.err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(w, msg+extra+"\n")
	return err
}

// qualify prefixes a's key with the open groups.
func (h *ConsoleHandler) qualify(a slog.Attr) slog.Attr {
	if len(h.groups) == 0 || a.Key == ToneKey {
		return a
	}
	a.Key = strings.Join(h.groups, ".") + "." + a.Key
	return a
}

func (h *ConsoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.attrs = append([]slog.Attr(nil), h.attrs...)
	for _, a := range attrs {
		c.attrs = append(c.attrs, h.qualify(a))
	}
	return &c
}

func (h *ConsoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := *h
	c.groups = append(append([]string(nil), h.groups...), name)
	return &c
}
