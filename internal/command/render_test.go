package command

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeycumines/renderdemo/internal/config"
	"github.com/joeycumines/renderdemo/internal/job"
	"github.com/joeycumines/renderdemo/internal/proc"
	"github.com/joeycumines/renderdemo/internal/proc/proctest"
	"github.com/joeycumines/renderdemo/internal/storage"
	"github.com/joeycumines/renderdemo/internal/testutil"
)

type renderFixture struct {
	t       *testing.T
	root    string
	sdr     string
	exe     string
	tf      string
	configD string
	temp    string
	history string

	cfg     *config.Config
	host    *proctest.FakeHost
	sleeper *testutil.Sleeper
	stdin   io.Reader
	stdout  bytes.Buffer
	stderr  bytes.Buffer
}

func touchFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, nil, 0644))
}

// newRenderFixture lays out a helper, a game install with a 1000 tick demo
// and a config directory, and a host whose game never exits on its own.
func newRenderFixture(t *testing.T) *renderFixture {
	t.Helper()
	root := t.TempDir()
	f := &renderFixture{
		t:       t,
		root:    root,
		sdr:     filepath.Join(root, "SDR"),
		exe:     filepath.Join(root, "game", "hl2.exe"),
		tf:      filepath.Join(root, "game", "tf"),
		configD: filepath.Join(root, "config"),
		temp:    filepath.Join(root, "tmp"),
		history: filepath.Join(root, "history"),
		cfg:     config.NewConfig(),
		host:    &proctest.FakeHost{Children: []*proc.Process{{PID: 2000, StartTime: 7}}},
		sleeper: &testutil.Sleeper{Limit: 20},
		stdin:   strings.NewReader(""),
	}
	touchFile(t, filepath.Join(f.sdr, "LauncherCLI.exe"))
	touchFile(t, filepath.Join(f.sdr, job.MultiProcessExtension))
	touchFile(t, f.exe)
	testutil.WriteDemo(t, f.tf, "match.dem", "tf", 1000)
	touchFile(t, filepath.Join(f.configD, job.AutoexecRelPath))
	touchFile(t, job.ProfilePath(f.configD, job.DefaultProfile))

	f.cfg.SetGlobalOption("paths.history-dir", f.history)
	f.cfg.SetGlobalOption("color", "never")
	return f
}

// writeLogOnFirstSleep makes the game write content to its console log the
// first time the run waits for it.
func (f *renderFixture) writeLogOnFirstSleep(content string) {
	f.sleeper.Steps = []func(){func() {
		entries, err := os.ReadDir(f.temp)
		require.NoError(f.t, err)
		for _, e := range entries {
			if e.IsDir() && storage.IsRunKey(e.Name()) {
				testutil.AppendFile(f.t, filepath.Join(f.tf, storage.LogFileName(e.Name())), content)
			}
		}
	}}
}

func (f *renderFixture) args(extra ...string) []string {
	return append([]string{
		"render",
		"-exepath", f.exe,
		"-sdrdir", f.sdr,
		"-configdir", f.configD,
		"-tempdir", f.temp,
		"-demo", "match",
		"-start", "100",
		"-end", "max",
		"-out", filepath.Join(f.root, "out", "clip"),
	}, extra...)
}

func (f *renderFixture) execute(args ...string) error {
	f.t.Helper()
	cmd := NewRenderCommand(context.Background(), f.cfg)
	cmd.Host = f.host
	cmd.Sleep = f.sleeper.Sleep
	cmd.Stdin = f.stdin
	r := NewRegistry()
	r.Register(cmd)
	return r.Execute(args, &f.stdout, &f.stderr)
}

func TestRenderCommand_NoFlags(t *testing.T) {
	f := newRenderFixture(t)
	require.NoError(t, f.execute("render"))
	assert.Equal(t, "RenderDemo - Automatically render out TF2 demos using SourceDemoRender.\n"+
		"Try 'renderdemo help render' for more information.\n", f.stdout.String())
	assert.Empty(t, f.host.Spawned)
}

func TestRenderCommand_Completed(t *testing.T) {
	f := newRenderFixture(t)
	textfile := filepath.Join(f.root, "metrics", "renderdemo.prom")
	f.cfg.SetGlobalOption("metrics.textfile", textfile)
	f.writeLogOnFirstSleep("renderdemo_message=Recording_done\\n\nrenderdemo_message=renderdemo_quit\n")

	require.NoError(t, f.execute(f.args()...))

	out := f.stdout.String()
	assert.Contains(t, out, "Demo: "+filepath.Join(f.tf, "match.dem"))
	assert.Contains(t, out, "Output: "+filepath.Join(f.root, "out", "clip.avi"))
	assert.Contains(t, out, "Start tick: 100 | End tick: 999 | Profile: both")
	assert.Contains(t, out, "Recording done\n")
	assert.Contains(t, out, "Recording finished successfully.")
	assert.Empty(t, f.stderr.String())

	require.Len(t, f.host.Spawned, 1)
	assert.True(t, f.host.WasTerminated(2000))
	assert.Equal(t, []proc.WindowState{proc.WindowFixed}, f.host.WindowStates)

	records, err := storage.History{Dir: f.history}.List()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "completed", records[0].Outcome)
	assert.Equal(t, 100, records[0].StartTick)

	data, err := os.ReadFile(textfile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `renderdemo_runs_total{outcome="completed"} 1`)

	entries, err := os.ReadDir(f.temp)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, e.IsDir(), "staging area %s left behind", e.Name())
	}
}

func TestRenderCommand_CrashExitCode(t *testing.T) {
	f := newRenderFixture(t)
	f.host.ExitAfter = map[int]int{2000: 0}

	err := f.execute(f.args()...)
	var ee *ExitError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, 1, ee.Code)
	assert.Contains(t, f.stderr.String(), "TF2 crashed on launch.")
}

func TestRenderCommand_SetupFailureExitCode(t *testing.T) {
	f := newRenderFixture(t)
	f.host.SpawnErr = assert.AnError

	err := f.execute(f.args()...)
	var ee *ExitError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, 2, ee.Code)
	assert.Contains(t, f.stderr.String(), "Couldn't start TF2")
}

func TestRenderCommand_InvalidInputExitsZero(t *testing.T) {
	f := newRenderFixture(t)
	args := f.args()
	for i, a := range args {
		if a == "-start" {
			args = append(args[:i], args[i+2:]...)
			break
		}
	}

	require.NoError(t, f.execute(args...))
	assert.Contains(t, f.stderr.String(), "Invalid input: -start must be set.")
	assert.Empty(t, f.host.Spawned)
}

func TestRenderCommand_JobFile(t *testing.T) {
	f := newRenderFixture(t)
	jobPath := filepath.Join(f.root, "job.yaml")
	require.NoError(t, os.WriteFile(jobPath, []byte(
		"exepath: "+f.exe+"\n"+
			"sdrdir: "+f.sdr+"\n"+
			"configdir: "+f.configD+"\n"+
			"tempdir: "+f.temp+"\n"+
			"demo: match\n"+
			"start: 200\n"+
			"end: 400\n"+
			"out: "+filepath.Join(f.root, "job.mp4")+"\n"+
			"window: hidden\n"), 0644))
	f.host.ExitAfter = map[int]int{2000: 0}

	_ = f.execute("render", "-job", jobPath, "-start", "300")

	assert.Contains(t, f.stdout.String(), "Start tick: 300 | End tick: 400 | Profile: both")
	assert.Contains(t, f.stdout.String(), "Output: "+filepath.Join(f.root, "job.mp4"))
	assert.Equal(t, []proc.WindowState{proc.WindowHidden}, f.host.WindowStates)
}

func TestRenderCommand_BadJobFile(t *testing.T) {
	f := newRenderFixture(t)
	jobPath := filepath.Join(f.root, "job.yaml")
	require.NoError(t, os.WriteFile(jobPath, []byte("demo: a\nspeed: 2\n"), 0644))

	require.NoError(t, f.execute("render", "-job", jobPath))
	assert.Contains(t, f.stderr.String(), "speed")
	assert.Empty(t, f.host.Spawned)
}

func TestRenderCommand_ConfigDefaults(t *testing.T) {
	f := newRenderFixture(t)
	f.cfg.SetGlobalOption("render.window", "broken")
	f.cfg.SetCommandOption("render", "render.launch-options", "-w 640")
	f.host.ExitAfter = map[int]int{2000: 0}

	_ = f.execute(f.args()...)

	assert.Empty(t, f.host.WindowStates, "broken leaves the window alone")
	require.Len(t, f.host.Spawned, 1)
	assert.Contains(t, strings.Join(f.host.Spawned[0].Args, " "), "-w 640")
}

func TestRenderCommand_FlagBeatsConfig(t *testing.T) {
	f := newRenderFixture(t)
	f.cfg.SetGlobalOption("render.window", "broken")
	f.host.ExitAfter = map[int]int{2000: 0}

	_ = f.execute(f.args("-window", "hidden")...)
	assert.Equal(t, []proc.WindowState{proc.WindowHidden}, f.host.WindowStates)
}

func TestRenderCommand_BadConfig(t *testing.T) {
	f := newRenderFixture(t)
	f.cfg.SetGlobalOption("poll.interval", "soon")

	err := f.execute(f.args()...)
	var ee *ExitError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, 2, ee.Code)
	assert.Contains(t, f.stderr.String(), "poll.interval")
	assert.Empty(t, f.host.Spawned)
}

func TestRenderCommand_Overwrite(t *testing.T) {
	existing := func(f *renderFixture) string {
		path := filepath.Join(f.root, "out", "clip.avi")
		touchFile(f.t, path)
		return path
	}

	t.Run("no", func(t *testing.T) {
		f := newRenderFixture(t)
		path := existing(f)
		require.NoError(t, f.execute(f.args("-overwrite", "no")...))
		assert.Contains(t, f.stdout.String(), "Output file '"+path+"' already exists. Not overwriting.")
		assert.Empty(t, f.host.Spawned)
	})

	t.Run("yes", func(t *testing.T) {
		f := newRenderFixture(t)
		path := existing(f)
		f.host.ExitAfter = map[int]int{2000: 0}
		_ = f.execute(f.args("-overwrite", "yes")...)
		assert.Contains(t, f.stdout.String(), "Output file '"+path+"' already exists and will be overwritten.")
		assert.Len(t, f.host.Spawned, 1)
	})

	t.Run("ask declined", func(t *testing.T) {
		f := newRenderFixture(t)
		existing(f)
		f.stdin = strings.NewReader("maybe\nn\n")
		require.NoError(t, f.execute(f.args()...))
		assert.Equal(t, 2, strings.Count(f.stdout.String(), "Overwrite? [y/n]"))
		assert.Empty(t, f.host.Spawned)
	})

	t.Run("ask accepted", func(t *testing.T) {
		f := newRenderFixture(t)
		existing(f)
		f.stdin = strings.NewReader("Y\n")
		f.host.ExitAfter = map[int]int{2000: 0}
		_ = f.execute(f.args()...)
		assert.Len(t, f.host.Spawned, 1)
	})

	t.Run("ask without input", func(t *testing.T) {
		f := newRenderFixture(t)
		existing(f)
		require.NoError(t, f.execute(f.args()...))
		assert.Empty(t, f.host.Spawned)
	})
}

func TestRenderCommand_TestMode(t *testing.T) {
	f := newRenderFixture(t)
	f.stdin = strings.NewReader("\n")
	f.host.ExitAfter = map[int]int{2000: 0}

	_ = f.execute(f.args("-test")...)
	assert.Contains(t, f.stdout.String(), "Test mode is on. Press any key to start . . .\n")
	assert.Len(t, f.host.Spawned, 1)
}

func TestRenderCommand_UnexpectedArgs(t *testing.T) {
	f := newRenderFixture(t)
	err := f.execute(f.args("extra")...)
	var ee *ExitError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, 2, ee.Code)
}

func TestRenderCommand_HistoryUnwritable(t *testing.T) {
	platform := testutil.DetectPlatform(t)
	testutil.SkipIfWindows(t, platform, "directory permissions")
	testutil.SkipIfRoot(t, platform, "root ignores directory permissions")

	f := newRenderFixture(t)
	require.NoError(t, os.MkdirAll(f.history, 0755))
	require.NoError(t, os.Chmod(f.history, 0500))
	t.Cleanup(func() { _ = os.Chmod(f.history, 0755) })
	f.writeLogOnFirstSleep("renderdemo_message=renderdemo_quit\n")

	require.NoError(t, f.execute(f.args()...))
	assert.Contains(t, f.stdout.String(), "could not save run history")
	assert.Contains(t, f.stdout.String(), "Recording finished successfully.")

	entries, err := os.ReadDir(f.history)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
