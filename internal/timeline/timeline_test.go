package timeline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func progressEntries(t *Timeline) []Entry {
	var out []Entry
	for _, e := range t.Entries() {
		if strings.HasPrefix(e.Label, "progress ") {
			out = append(out, e)
		}
	}
	return out
}

func entryAt(t *Timeline, tick int) (Entry, bool) {
	for _, e := range t.Entries() {
		if e.Tick == tick {
			return e, true
		}
	}
	return Entry{}, false
}

// countMarkers counts progress commands, including one merged into the load
// entry.
func countMarkers(t *Timeline) int {
	var n int
	for _, e := range t.Entries() {
		n += strings.Count(e.Commands, "perc")
	}
	return n
}

func TestGenerate_StartAtFirstTick(t *testing.T) {
	t.Parallel()
	tl, err := Generate(1, 201)
	require.NoError(t, err)
	entries := tl.Entries()
	assert.Equal(t, Entry{Tick: 1, Commands: "renderdemo_load; renderdemo_0perc", Label: "Demo loaded, progress 0%"}, entries[0])
	assert.Equal(t, Entry{Tick: 3, Commands: "renderdemo_1perc", Label: "progress 1%"}, entries[1])
	assert.Len(t, entries, 101)
}

func TestGenerate_StepTwo(t *testing.T) {
	t.Parallel()
	tl, err := Generate(100, 300)
	require.NoError(t, err)

	entries := tl.Entries()
	require.Len(t, entries, 3+101)
	assert.Equal(t, Entry{Tick: 1, Commands: "renderdemo_load", Label: "Demo loaded"}, entries[0])
	assert.Equal(t, Entry{Tick: 2, Commands: "renderdemo_ff; demo_gototick 98", Label: "Fast forward"}, entries[1])
	assert.Equal(t, Entry{Tick: 99, Commands: "renderdemo_prep", Label: "Prepare recording"}, entries[2])

	for i, e := range entries[3:] {
		assert.Equal(t, 100+2*i, e.Tick)
		assert.Equal(t, ProgressCommand(i), e.Commands)
	}
	assert.Equal(t, "progress 100%", entries[len(entries)-1].Label)
}

func TestGenerate_NarrowWindow(t *testing.T) {
	t.Parallel()
	tl, err := Generate(10, 20)
	require.NoError(t, err)

	progress := progressEntries(tl)
	require.Len(t, progress, 11)
	for k, e := range progress {
		assert.Equal(t, 10+k, e.Tick)
		assert.Equal(t, ProgressCommand(10*k), e.Commands)
	}
}

func TestGenerate_NoFastForwardNearStart(t *testing.T) {
	t.Parallel()
	for _, start := range []int{1, 2, 3} {
		tl, err := Generate(start, start+500)
		require.NoError(t, err)
		for _, e := range tl.Entries() {
			assert.NotContains(t, e.Commands, FastForwardCommand, "start=%d", start)
			assert.NotEqual(t, PrepareCommand, e.Commands, "start=%d", start)
		}
	}

	tl, err := Generate(4, 500)
	require.NoError(t, err)
	entries := tl.Entries()
	assert.Equal(t, "renderdemo_ff; demo_gototick 2", entries[1].Commands)
	assert.Equal(t, 3, entries[2].Tick)
}

func TestGenerate_Properties(t *testing.T) {
	t.Parallel()
	for _, tc := range []struct{ start, end int }{
		{1, 2}, {1, 99}, {3, 4}, {4, 5}, {50, 149}, {100, 300}, {5000, 123456},
	} {
		tl, err := Generate(tc.start, tc.end)
		require.NoError(t, err)
		entries := tl.Entries()

		for i := 1; i < len(entries); i++ {
			assert.Greater(t, entries[i].Tick, entries[i-1].Tick, "%v: ticks strictly increase", tc)
		}

		zero, ok := entryAt(tl, tc.start)
		require.True(t, ok, "%v", tc)
		assert.Contains(t, zero.Commands, ProgressCommand(0), "%v", tc)

		progress := progressEntries(tl)
		require.NotEmpty(t, progress)
		assert.Equal(t, ProgressCommand(100), progress[len(progress)-1].Commands, "%v", tc)
		assert.Equal(t, tc.end, progress[len(progress)-1].Tick)

		if w := tc.end - tc.start; w < Steps {
			assert.LessOrEqual(t, countMarkers(tl), w+1, "%v", tc)
		}
	}
}

func TestGenerate_Invalid(t *testing.T) {
	t.Parallel()
	for _, tc := range []struct{ start, end int }{{0, 10}, {10, 10}, {10, 5}, {-1, 3}} {
		_, err := Generate(tc.start, tc.end)
		assert.Error(t, err, "%v", tc)
	}
}

func TestTimeline_Add(t *testing.T) {
	t.Parallel()
	var tl Timeline

	added, err := tl.Add(Entry{Tick: 5, Commands: "a"})
	require.NoError(t, err)
	assert.True(t, added)

	added, err = tl.Add(Entry{Tick: 5, Commands: "b"})
	require.NoError(t, err)
	assert.False(t, added, "first entry at a tick wins")

	_, err = tl.Add(Entry{Tick: 4})
	assert.ErrorIs(t, err, ErrOrder)
	_, err = tl.Add(Entry{Tick: 0})
	assert.ErrorIs(t, err, ErrOrder)

	require.Equal(t, 1, tl.Len())
	assert.Equal(t, "a", tl.Entries()[0].Commands)
}

func TestMarshalVDM(t *testing.T) {
	t.Parallel()
	var tl Timeline
	_, _ = tl.Add(Entry{Tick: 1, Commands: "renderdemo_load", Label: "Demo loaded"})
	_, _ = tl.Add(Entry{Tick: 7, Commands: "renderdemo_0perc", Label: "progress 0%"})

	want := "demoactions\n{\n" +
		"\t\"1\"\n\t{\n\t\tfactory \"PlayCommands\"\n\t\tname \"Demo loaded\"\n\t\tstarttick \"1\"\n\t\tcommands \"renderdemo_load\"\n\t}\n" +
		"\t\"2\"\n\t{\n\t\tfactory \"PlayCommands\"\n\t\tname \"progress 0%\"\n\t\tstarttick \"7\"\n\t\tcommands \"renderdemo_0perc\"\n\t}\n" +
		"}"
	assert.Equal(t, want, string(tl.MarshalVDM()))

	var empty Timeline
	assert.Equal(t, "demoactions\n{\n}", string(empty.MarshalVDM()))
}

func TestWriteFile(t *testing.T) {
	t.Parallel()
	tl, err := Generate(10, 20)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "renderdemo", "demo_to_record.vdm")
	require.NoError(t, tl.WriteFile(path))
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, tl.MarshalVDM(), got)

	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))
	assert.Error(t, tl.WriteFile(filepath.Join(blocker, "x.vdm")))
}
