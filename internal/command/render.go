package command

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/joeycumines/renderdemo/internal/config"
	"github.com/joeycumines/renderdemo/internal/job"
	"github.com/joeycumines/renderdemo/internal/launcher"
	"github.com/joeycumines/renderdemo/internal/logging"
	"github.com/joeycumines/renderdemo/internal/monitor"
	"github.com/joeycumines/renderdemo/internal/poll"
	"github.com/joeycumines/renderdemo/internal/proc"
	"github.com/joeycumines/renderdemo/internal/render"
	"github.com/joeycumines/renderdemo/internal/storage"
)

// RenderCommand records one demo.
type RenderCommand struct {
	*BaseCommand
	ctx    context.Context
	config *config.Config

	// Stdin answers the overwrite question and the test mode pause
	// (default os.Stdin).
	Stdin io.Reader
	// Host runs the helper and the game (default proc.NewHost()).
	Host  proc.Host
	Sleep poll.SleepFunc

	fs      *flag.FlagSet
	flags   job.Input
	jobFile string
	color   string
}

// NewRenderCommand creates the render command. ctx cancels a run in
// progress.
func NewRenderCommand(ctx context.Context, cfg *config.Config) *RenderCommand {
	return &RenderCommand{
		BaseCommand: NewBaseCommand(
			"render",
			"Record a demo with SourceDemoRender",
			"render -exepath <hl2.exe> -demo <file> -start <tick> -end <tick|max> -out <file> [options]",
		),
		ctx:    ctx,
		config: cfg,
	}
}

// SetupFlags configures the flags for the render command.
func (c *RenderCommand) SetupFlags(fs *flag.FlagSet) {
	c.fs = fs
	in := &c.flags
	fs.StringVar(&in.ExePath, "exepath", "", "Path to TF2's hl2.exe")
	fs.StringVar(&in.Demo, "demo", "", "Demo to record, relative to the tf folder unless absolute")
	fs.StringVar(&in.Start, "start", "", "First tick to record")
	fs.StringVar(&in.End, "end", "", "Last tick to record, or 'max' for the end of the demo")
	fs.StringVar(&in.Out, "out", "", "Output file (.avi, .mp4, .mov or .mkv)")
	fs.StringVar(&in.SDRDir, "sdrdir", "", "SourceDemoRender folder (default: SDR)")
	fs.StringVar(&in.TFDir, "tfdir", "", "TF2's tf folder (default: tf next to hl2.exe)")
	fs.StringVar(&in.Profile, "profile", "", "Recording profile, one of the files in cfg/renderdemo/profiles")
	fs.StringVar(&in.Cmd, "cmd", "", "Console commands to run before recording")
	fs.StringVar(&in.Launch, "launch", "", "Extra TF2 launch options")
	fs.StringVar(&in.Window, "window", "", "Window state: fixed, broken or hidden")
	fs.StringVar(&in.Overwrite, "overwrite", "", "Existing output file: yes, no or ask")
	fs.BoolVar(&in.Test, "test", false, "Wait for a key press before starting TF2")
	fs.StringVar(&in.LogLevel, "loglevel", "", "Verbosity: debug, info, brief, progress, error or quiet")
	fs.StringVar(&in.ConfigDir, "configdir", "", "Folder holding cfg/renderdemo (default: config)")
	fs.StringVar(&in.TempDir, "tempdir", "", "Root for temporary staging folders")
	fs.StringVar(&c.jobFile, "job", "", "YAML job file; flags given on the command line override it")
	fs.StringVar(&c.color, "color", "", "Color mode: auto, always or never")
}

// HelpText describes the job fields in more detail.
func (c *RenderCommand) HelpText() string {
	return `Profiles:
  Profiles are CFG files in <configdir>/cfg/renderdemo/profiles. The shipped
  ones are 'video' (no audio), 'audio' (audio only) and 'both'.

Window states:
  fixed   keep the game window behind other windows and minimized
  broken  leave the window alone; rendering may break when it loses focus
  hidden  hide the window entirely

Examples:
  renderdemo render -exepath "C:\Games\Team Fortress 2\hl2.exe" -demo match.dem -start 500 -end max -out C:\Videos\match.mp4
  renderdemo render -job jobs/match.yaml -overwrite yes
`
}

// Execute runs the render command.
func (c *RenderCommand) Execute(args []string, stdout, stderr io.Writer) error {
	if len(args) > 0 {
		_, _ = fmt.Fprintf(stderr, "unexpected arguments: %v\n", args)
		return &ExitError{Code: 2, Err: errors.New("unexpected arguments")}
	}
	if c.fs == nil || (c.fs.NFlag() == 0 && c.jobFile == "") {
		_, _ = fmt.Fprintln(stdout, "RenderDemo - Automatically render out TF2 demos using SourceDemoRender.")
		_, _ = fmt.Fprintln(stdout, "Try 'renderdemo help render' for more information.")
		return nil
	}

	in, inErr := c.input()

	var p *job.Params
	err := inErr
	if err == nil {
		p, err = job.Resolve(in)
	}
	level := in.LogLevel
	if err == nil {
		level = logging.LevelName(p.Verbosity)
	}
	logger, closer, logErr := newLogger(c.config, level, c.color, stdout, stderr)
	defer closer.Close()

	if err != nil {
		// Invalid input is reported, not treated as a failed run.
		logger.Error(err.Error())
		return nil
	}
	if logErr != nil {
		logger.Warn("logging setup failed", "error", logErr)
	}

	for _, line := range p.Summary() {
		logger.Info(line)
	}

	con := newConsole(c.stdin(), stdout)
	if p.TestMode {
		if err := con.waitForKey(); err != nil {
			return err
		}
	}

	ok, err := c.checkOutput(con, p, logger)
	if err != nil || !ok {
		return err
	}

	orch, err := c.orchestrator(stdout, logger)
	if err != nil {
		logger.Error("ERROR: " + err.Error())
		return &ExitError{Code: 2, Err: err}
	}
	rep := orch.Run(c.ctx, p)
	if rep.Outcome != render.Completed {
		return &ExitError{Code: rep.ExitCode(), Err: rep.Err}
	}
	return nil
}

func (c *RenderCommand) stdin() io.Reader {
	if c.Stdin != nil {
		return c.Stdin
	}
	return os.Stdin
}

// input merges the job: explicit flags win over the job file, which wins
// over config defaults.
func (c *RenderCommand) input() (job.Input, error) {
	var in job.Input
	if c.jobFile != "" {
		loaded, err := job.LoadFile(c.jobFile)
		if err != nil {
			return c.flags, err
		}
		in = *loaded
	}

	var setErr error
	if c.fs != nil {
		c.fs.Visit(func(f *flag.Flag) {
			if f.Name == "job" || f.Name == "color" || setErr != nil {
				return
			}
			setErr = in.Set(f.Name, f.Value.String())
		})
	}
	if setErr != nil {
		return in, setErr
	}
	in.Defaults(configInput(c.config))
	return in, nil
}

// configInput reads the job defaults from the [render] section, falling
// back to the global options.
func configInput(cfg *config.Config) job.Input {
	s := config.DefaultSchema()
	get := func(key string) string { return s.ResolveCommand(cfg, "render", key) }
	path := func(key string) string { return config.ExpandHome(get(key)) }
	return job.Input{
		SDRDir:    path("sdr.dir"),
		ExePath:   path("game.exe"),
		TFDir:     path("game.dir"),
		ConfigDir: path("paths.config-dir"),
		TempDir:   path("paths.temp-dir"),
		Profile:   get("render.profile"),
		Window:    get("render.window"),
		Overwrite: get("render.overwrite"),
		Launch:    get("render.launch-options"),
		LogLevel:  get("log.level"),
	}
}

// checkOutput applies the overwrite policy. It reports false when the run
// should not go ahead.
func (c *RenderCommand) checkOutput(con *console, p *job.Params, logger *slog.Logger) (bool, error) {
	if _, err := os.Stat(p.OutputPath); err != nil {
		return true, nil
	}
	switch p.OverwritePolicy {
	case job.OverwriteYes:
		logger.Log(c.ctx, logging.LevelBrief,
			fmt.Sprintf("Output file '%s' already exists and will be overwritten.", p.OutputPath),
			logging.Tone(logging.ToneWarning))
		return true, nil
	case job.OverwriteNo:
		logger.Log(c.ctx, logging.LevelBrief,
			fmt.Sprintf("Output file '%s' already exists. Not overwriting.", p.OutputPath))
		return false, nil
	default:
		return con.confirmOverwrite(p.OutputPath)
	}
}

func (c *RenderCommand) orchestrator(stdout io.Writer, logger *slog.Logger) (*render.Orchestrator, error) {
	s := config.DefaultSchema()
	o := &render.Orchestrator{
		Host:            c.Host,
		Sleep:           c.Sleep,
		Protocol:        monitor.DefaultProtocol(),
		Progress:        stdout,
		MetricsTextfile: s.ResolvePath(c.config, "metrics.textfile"),
		Logger:          logger,
	}
	if o.Host == nil {
		o.Host = proc.NewHost()
	}

	var err error
	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"poll.interval", &o.Interval},
		{"launch.timeout", &o.LaunchTimeout},
		{"monitor.timeout", &o.MonitorTimeout},
		{"window.wait", &o.WindowWait},
	}
	for _, d := range durations {
		if *d.dst, err = s.ResolveDuration(c.config, "render", d.key); err != nil {
			return nil, err
		}
	}
	if o.Multiple, err = launcher.ParseMultiplePolicy(s.ResolveCommand(c.config, "render", "discovery.multiple")); err != nil {
		return nil, err
	}

	enabled, err := s.ResolveBool(c.config, "history.enabled")
	if err != nil {
		return nil, err
	}
	if !enabled {
		return o, nil
	}
	dir := s.ResolvePath(c.config, "paths.history-dir")
	if dir == "" {
		if dir, err = storage.DefaultHistoryDirectory(); err != nil {
			return nil, err
		}
	}
	o.History = &storage.History{Dir: dir}
	if o.Retention, err = retention(s, c.config); err != nil {
		return nil, err
	}
	return o, nil
}

func retention(s *config.ConfigSchema, cfg *config.Config) (storage.Retention, error) {
	var r storage.Retention
	var err error
	if r.MaxCount, err = s.ResolveInt(cfg, "history.max-count"); err != nil {
		return r, err
	}
	r.MaxAgeDays, err = s.ResolveInt(cfg, "history.max-age-days")
	return r, err
}
