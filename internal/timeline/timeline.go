// Package timeline builds the scripted action timeline a demo is played back
// with, and serializes it as a VDM ("demoactions") file.
package timeline

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/joeycumines/renderdemo/internal/storage"
)

// Aliases invoked by the generated timeline. They are defined by the
// renderdemo cfg scripts shipped in the config directory.
const (
	LoadCommand        = "renderdemo_load"
	FastForwardCommand = "renderdemo_ff"
	PrepareCommand     = "renderdemo_prep"
)

// Steps is the number of equal slices the recording window is divided into
// for progress reporting.
const Steps = 100

// ErrOrder is returned when an entry would make the timeline non-monotonic.
var ErrOrder = errors.New("timeline: tick out of order")

// Entry is a set of console commands fired at a given tick.
type Entry struct {
	Tick     int
	Commands string
	Label    string
}

// Timeline is an ordered list of entries with non-decreasing, distinct ticks.
type Timeline struct {
	entries []Entry
}

// Add appends e. An entry whose tick equals the last entry's tick is dropped,
// and Add reports false. Ticks below 1 or below the last tick are rejected.
func (t *Timeline) Add(e Entry) (bool, error) {
	if e.Tick < 1 {
		return false, fmt.Errorf("%w: tick %d is below 1", ErrOrder, e.Tick)
	}
	if n := len(t.entries); n > 0 {
		last := t.entries[n-1].Tick
		if e.Tick == last {
			return false, nil
		}
		if e.Tick < last {
			return false, fmt.Errorf("%w: tick %d after %d", ErrOrder, e.Tick, last)
		}
	}
	t.entries = append(t.entries, e)
	return true, nil
}

// Entries returns a copy of the entries in order.
func (t *Timeline) Entries() []Entry {
	return append([]Entry(nil), t.entries...)
}

// Len is the number of entries.
func (t *Timeline) Len() int { return len(t.entries) }

// Generate builds the recording timeline for [start, end]:
//
//   - tick 1 loads the demo,
//   - when start > 3, tick 2 fast-forwards to start-2 and tick start-1
//     prepares recording,
//   - then one progress entry per percent of the window, skipping any that
//     would land on the tick of the previous one.
//
// When start is 1 the 0% command and label are merged into the load entry,
// so the series still starts at 0%. Any other entry on an occupied tick is
// dropped.
func Generate(start, end int) (*Timeline, error) {
	if start < 1 {
		return nil, fmt.Errorf("timeline: start tick %d must be at least 1", start)
	}
	if end <= start {
		return nil, fmt.Errorf("timeline: end tick %d must be after start tick %d", end, start)
	}

	t := new(Timeline)
	add := func(e Entry) error {
		_, err := t.Add(e)
		return err
	}

	if err := add(Entry{Tick: 1, Commands: LoadCommand, Label: "Demo loaded"}); err != nil {
		return nil, err
	}
	if start > 3 {
		ff := Entry{
			Tick:     2,
			Commands: FastForwardCommand + "; demo_gototick " + strconv.Itoa(start-2),
			Label:    "Fast forward",
		}
		if err := add(ff); err != nil {
			return nil, err
		}
		if err := add(Entry{Tick: start - 1, Commands: PrepareCommand, Label: "Prepare recording"}); err != nil {
			return nil, err
		}
	}

	first := 0
	if start == 1 {
		// Tick 1 is taken by the load entry; the 0% marker fires with it.
		t.entries[0].Commands += "; " + ProgressCommand(0)
		t.entries[0].Label += ", progress 0%"
		first = 1
	}

	width := end - start
	for i := first; i <= Steps; i++ {
		e := Entry{
			Tick:     start + i*width/Steps,
			Commands: ProgressCommand(i),
			Label:    fmt.Sprintf("progress %d%%", i),
		}
		if err := add(e); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// ProgressCommand is the alias fired when recording reaches percent.
func ProgressCommand(percent int) string {
	return "renderdemo_" + strconv.Itoa(percent) + "perc"
}

// MarshalVDM renders t in the demoactions format understood by the game's
// demo player. Entries are numbered from 1 in order.
func (t *Timeline) MarshalVDM() []byte {
	var b strings.Builder
	b.WriteString("demoactions\n{\n")
	for i, e := range t.entries {
		fmt.Fprintf(&b, "\t\"%d\"\n", i+1)
		b.WriteString("\t{\n")
		b.WriteString("\t\tfactory \"PlayCommands\"\n")
		fmt.Fprintf(&b, "\t\tname \"%s\"\n", e.Label)
		fmt.Fprintf(&b, "\t\tstarttick \"%d\"\n", e.Tick)
		fmt.Fprintf(&b, "\t\tcommands \"%s\"\n", e.Commands)
		b.WriteString("\t}\n")
	}
	b.WriteString("}")
	return []byte(b.String())
}

// WriteFile persists the VDM at path.
func (t *Timeline) WriteFile(path string) error {
	if err := storage.AtomicWriteFile(path, t.MarshalVDM(), 0644); err != nil {
		return fmt.Errorf("timeline: write %s: %w", path, err)
	}
	return nil
}
