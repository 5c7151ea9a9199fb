// Package render runs one recording from a validated job.Params to a
// classified Outcome.
//
// A run stages a private copy of the demo, writes the alias file and the
// demo timeline next to it, launches the game through the helper, applies
// the window policy, and tails the console log until the recording completes
// or the game exits. Whatever happens, the staging directory and the console
// log are removed exactly once before Run returns.
package render

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/joeycumines/renderdemo/internal/gamecfg"
	"github.com/joeycumines/renderdemo/internal/job"
	"github.com/joeycumines/renderdemo/internal/launcher"
	"github.com/joeycumines/renderdemo/internal/logging"
	"github.com/joeycumines/renderdemo/internal/metrics"
	"github.com/joeycumines/renderdemo/internal/monitor"
	"github.com/joeycumines/renderdemo/internal/poll"
	"github.com/joeycumines/renderdemo/internal/proc"
	"github.com/joeycumines/renderdemo/internal/storage"
	"github.com/joeycumines/renderdemo/internal/timeline"
)

// Paths inside the staging directory. The shipped autoexec plays
// renderdemo/demo_to_record with its matching timeline.
var (
	DemoRelPath     = filepath.Join("renderdemo", "demo_to_record.dem")
	TimelineRelPath = filepath.Join("renderdemo", "demo_to_record.vdm")
)

// Orchestrator holds everything about a run that does not come from the
// job. The zero value is usable once Host is set.
type Orchestrator struct {
	Host proc.Host

	// Interval and Sleep drive every wait loop.
	Interval time.Duration
	Sleep    poll.SleepFunc

	// LaunchTimeout and MonitorTimeout bound the helper start-up and the
	// recording; zero waits for as long as it takes.
	LaunchTimeout  time.Duration
	MonitorTimeout time.Duration
	// WindowWait bounds the wait for the game window.
	WindowWait time.Duration
	Multiple   launcher.MultiplePolicy
	Protocol   *monitor.Protocol

	// Progress receives decoded progress messages, when the job's
	// verbosity lets them through. Nil discards them.
	Progress io.Writer

	// History, if set, gets a RunRecord for every run; Retention is
	// applied afterwards.
	History   *storage.History
	Retention storage.Retention
	// MetricsTextfile, if set, is rewritten after every run.
	MetricsTextfile string

	Logger *slog.Logger

	// Hooks, defaulting to the real thing.
	Now       func() time.Time
	NewRun    func() RunContext
	RemoveAll func(string) error
	Remove    func(string) error
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func (o *Orchestrator) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

// Run performs one recording. It never returns nil; setup failures are
// reported through Report.Err with Outcome SetupFailed.
func (o *Orchestrator) Run(ctx context.Context, p *job.Params) *Report {
	rc := NewRunContext()
	if o.NewRun != nil {
		rc = o.NewRun()
	}
	r := &run{
		o:   o,
		p:   p,
		rc:  rc,
		log: o.logger().With("run", rc.Key),
	}
	r.report = &Report{Key: rc.Key, StartedAt: o.now()}

	outcome, err := r.execute(ctx)
	r.cleanup()

	r.report.Outcome = outcome
	r.report.Err = err
	r.report.FinishedAt = o.now()
	o.record(r.report, p)
	return r.report
}

type run struct {
	o      *Orchestrator
	p      *job.Params
	rc     RunContext
	log    *slog.Logger
	report *Report

	staging     *storage.StagingArea
	cleanupOnce sync.Once
}

func (r *run) logPath() string {
	return filepath.Join(r.p.GameDir, storage.LogFileName(r.rc.Key))
}

func (r *run) setupFailed(msg string, err error) (Outcome, error) {
	r.log.Error(fmt.Sprintf("ERROR: %s: %v", msg, err), logging.Tone(logging.ToneFailure))
	return SetupFailed, err
}

func (r *run) execute(ctx context.Context) (Outcome, error) {
	o, p := r.o, r.p
	if o.Host == nil {
		return r.setupFailed("Couldn't start", errors.New("render: no process host"))
	}

	staging, err := storage.CreateStagingArea(p.TempDir, r.rc.Key)
	if err != nil {
		return r.setupFailed("Couldn't create temporary folder", fmt.Errorf("render: %w", err))
	}
	if o.RemoveAll != nil {
		staging.RemoveAll = o.RemoveAll
	}
	r.staging = staging
	r.log.Debug("staging area created", "dir", staging.Dir)

	if err := staging.Import(p.ArtifactPath, DemoRelPath); err != nil {
		return r.setupFailed("Couldn't copy demo", fmt.Errorf("render: %w", err))
	}

	if _, err := gamecfg.Write(staging.Dir, gamecfg.Aliases{
		Key:        r.rc.Key,
		OutputPath: p.OutputPath,
		Profile:    p.ProfileName,
		Commands:   p.ExtraCommands,
	}); err != nil {
		return r.setupFailed("Error creating CFGs", fmt.Errorf("render: %w", err))
	}

	tl, err := timeline.Generate(p.StartTick, p.EndTick)
	if err == nil {
		err = tl.WriteFile(staging.Path(TimelineRelPath))
	}
	if err != nil {
		return r.setupFailed("Error saving VDM", fmt.Errorf("render: %w", err))
	}
	r.log.Debug("timeline written", "entries", tl.Len())

	r.log.Log(ctx, logging.LevelBrief, "Starting SDR launcher...")
	l := &launcher.Launcher{
		Host:     o.Host,
		Interval: o.Interval,
		Sleep:    o.Sleep,
		Timeout:  o.LaunchTimeout,
		Multiple: o.Multiple,
		Logger:   r.log,
	}
	game, err := l.Launch(ctx, launcher.HelperCommand(launcher.HelperConfig{
		HelperDir:     p.HelperDir,
		GameExe:       p.GameExe,
		GameDir:       p.GameDir,
		ConfigDir:     p.ConfigDir,
		StagingDir:    staging.Dir,
		LaunchOptions: p.ExtraLaunchFlags,
	}))
	if err != nil {
		return r.setupFailed("Couldn't start TF2", err)
	}
	r.log.Log(ctx, logging.LevelBrief, "TF2 has started, closed SDR launcher.", "pid", game.PID)

	(&launcher.WindowController{
		Host:     o.Host,
		Interval: o.Interval,
		Sleep:    o.Sleep,
		Wait:     o.WindowWait,
		Logger:   r.log,
	}).Apply(ctx, game, p.WindowPolicy)

	progress := o.Progress
	if progress == nil || p.Verbosity > logging.LevelProgress {
		progress = io.Discard
	}
	m := &monitor.Monitor{
		LogPath:  r.logPath(),
		Exited:   func() (bool, error) { return o.Host.HasExited(game) },
		Protocol: o.Protocol,
		Interval: o.Interval,
		Sleep:    o.Sleep,
		Timeout:  o.MonitorTimeout,
		Progress: func(text string) { _, _ = io.WriteString(progress, text) },
		Logger:   r.log,
	}
	res, err := m.Run(ctx)
	r.report.Markers = res.Markers
	if err != nil {
		r.terminate(game)
		return r.setupFailed("Stopped waiting for TF2", err)
	}

	if res.State == monitor.Completed {
		r.log.Log(ctx, logging.LevelProgress, "Recording finished successfully.", logging.Tone(logging.ToneSuccess))
		// Killed rather than quit, so the game cannot save the recording
		// settings into its own config.
		r.terminate(game)
		return Completed, nil
	}
	if !res.LogSeen {
		r.log.Error("TF2 crashed on launch.", logging.Tone(logging.ToneFailure))
	} else {
		r.log.Error("TF2 has exited before CFGs could finish. Recording might have failed.", logging.Tone(logging.ToneFailure))
	}
	return Crashed, nil
}

func (r *run) terminate(game *proc.Process) {
	if err := r.o.Host.Terminate(game); err != nil {
		r.log.Warn("could not terminate TF2", "pid", game.PID, "error", err)
	}
}

// cleanup removes the run's files. Failures are logged and otherwise
// ignored.
func (r *run) cleanup() {
	r.cleanupOnce.Do(func() {
		remove := r.o.Remove
		if remove == nil {
			remove = os.Remove
		}
		if err := remove(r.logPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
			r.log.Debug("could not remove console log", "path", r.logPath(), "error", err)
		}
		if r.staging != nil {
			if err := r.staging.Release(); err != nil {
				r.log.Debug("could not remove staging area", "dir", r.staging.Dir, "error", err)
			}
		}
	})
}

// record persists rep to the history and the metrics textfile. Both are
// best-effort.
func (o *Orchestrator) record(rep *Report, p *job.Params) {
	log := o.logger().With("run", rep.Key)
	rec := storage.RunRecord{
		Key:        rep.Key,
		Demo:       p.ArtifactPath,
		Output:     p.OutputPath,
		StartTick:  p.StartTick,
		EndTick:    p.EndTick,
		Profile:    p.ProfileName,
		Outcome:    rep.Outcome.String(),
		ExitCode:   rep.ExitCode(),
		Markers:    rep.Markers,
		StartedAt:  rep.StartedAt,
		FinishedAt: rep.FinishedAt,
	}
	if rep.Err != nil {
		rec.Error = rep.Err.Error()
	}

	var records []storage.RunRecord
	if o.History != nil {
		if err := o.History.Save(&rec); err != nil {
			log.Warn("could not save run history", "error", err)
		} else if removed, err := o.History.Prune(o.Retention, rep.FinishedAt); err != nil {
			log.Warn("could not prune run history", "error", err)
		} else if len(removed) > 0 {
			log.Debug("pruned run history", "removed", len(removed))
		}
		if o.MetricsTextfile != "" {
			var err error
			if records, err = o.History.List(); err != nil {
				log.Warn("could not read run history", "error", err)
			}
		}
	}

	if o.MetricsTextfile != "" {
		if err := metrics.Export(o.MetricsTextfile, records, &rec); err != nil {
			log.Warn("could not write metrics", "path", o.MetricsTextfile, "error", err)
		}
	}
}
