package monitor

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

// Kind classifies a log line.
type Kind int

const (
	// Unterminated is a line that carries no marker; the run goes on.
	Unterminated Kind = iota
	// Progress is a marker with a payload to surface.
	Progress
	// Terminal is the quit marker: recording finished.
	Terminal
)

func (k Kind) String() string {
	switch k {
	case Unterminated:
		return "unterminated"
	case Progress:
		return "progress"
	case Terminal:
		return "terminal"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Message is what a log line means to the monitor. Text is the raw token for
// Progress messages; use Decode to render it.
type Message struct {
	Kind Kind
	Text string
}

// Protocol describes how the cfg scripts signal through the console log: a
// line containing Tag followed by a token. The token runs up to the first
// space, ';', ':', '"' or '\''. QuitToken marks the end of recording.
type Protocol struct {
	Tag       string
	QuitToken string

	once sync.Once
	re   *regexp.Regexp
}

// DefaultProtocol matches the echo statements in the shipped cfg scripts.
func DefaultProtocol() *Protocol {
	return &Protocol{Tag: "renderdemo_message=", QuitToken: "renderdemo_quit"}
}

func (p *Protocol) pattern() *regexp.Regexp {
	p.once.Do(func() {
		p.re = regexp.MustCompile(regexp.QuoteMeta(p.Tag) + `([^ ;:'"]+)`)
	})
	return p.re
}

// Parse classifies line. Only the first marker on a line counts.
func (p *Protocol) Parse(line string) Message {
	m := p.pattern().FindStringSubmatch(line)
	if m == nil {
		return Message{Kind: Unterminated}
	}
	if m[1] == p.QuitToken {
		return Message{Kind: Terminal, Text: m[1]}
	}
	return Message{Kind: Progress, Text: m[1]}
}

var escapedRune = regexp.MustCompile(`\\[0-9a-fA-F]{4}`)

// Decode renders a marker payload: '_' becomes a space, the two-character
// sequences \n and \r become newline and carriage return, and \XXXX (four
// hex digits) becomes that code point.
func Decode(s string) string {
	s = strings.ReplaceAll(s, "_", " ")
	s = strings.ReplaceAll(s, `\n`, "\n")
	s = strings.ReplaceAll(s, `\r`, "\r")
	return escapedRune.ReplaceAllStringFunc(s, func(m string) string {
		n, err := strconv.ParseUint(m[1:], 16, 32)
		if err != nil {
			return m
		}
		return string(rune(n))
	})
}
