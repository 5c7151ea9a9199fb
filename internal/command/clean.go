package command

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/joeycumines/renderdemo/internal/config"
	"github.com/joeycumines/renderdemo/internal/storage"
)

// CleanCommand removes staging folders and console logs left behind by runs
// that were killed before they could clean up.
type CleanCommand struct {
	*BaseCommand
	ctx    context.Context
	config *config.Config

	// NewTicker overrides the ticker used by -every.
	NewTicker func(d time.Duration) (<-chan time.Time, func())

	minAge  string
	every   string
	tempDir string
	tfDir   string
	dryRun  bool
}

// NewCleanCommand creates the clean command.
func NewCleanCommand(ctx context.Context, cfg *config.Config) *CleanCommand {
	return &CleanCommand{
		BaseCommand: NewBaseCommand(
			"clean",
			"Remove leftovers of interrupted runs",
			"clean [-min-age duration] [-dry-run] [-every duration]",
		),
		ctx:    ctx,
		config: cfg,
	}
}

// SetupFlags configures the flags for the clean command.
func (c *CleanCommand) SetupFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.minAge, "min-age", "", "Only remove folders older than this (default: clean.min-age)")
	fs.StringVar(&c.every, "every", "", "Keep running and sweep at this interval")
	fs.StringVar(&c.tempDir, "tempdir", "", "Staging root to sweep (default: paths.temp-dir)")
	fs.StringVar(&c.tfDir, "tfdir", "", "Game folder holding the console logs (default: game.dir)")
	fs.BoolVar(&c.dryRun, "dry-run", false, "Only report what would be removed")
}

// Execute runs the clean command.
func (c *CleanCommand) Execute(args []string, stdout, stderr io.Writer) error {
	if len(args) > 0 {
		_, _ = fmt.Fprintf(stderr, "unexpected arguments: %v\n", args)
		return &ExitError{Code: 2, Err: errors.New("unexpected arguments")}
	}

	sweeper, every, err := c.sweeper()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return &ExitError{Code: 2, Err: err}
	}

	if every <= 0 {
		report, err := sweeper.Sweep()
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return &ExitError{Code: 1, Err: err}
		}
		c.printReport(stdout, report)
		return nil
	}

	_, _ = fmt.Fprintf(stdout, "Sweeping %s every %s\n", sweeper.Root, every)
	(&storage.SweepScheduler{
		Sweeper:   sweeper,
		Interval:  every,
		NewTicker: c.NewTicker,
		OnReport: func(report *storage.SweepReport, err error) {
			if err != nil {
				_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
				return
			}
			c.printReport(stdout, report)
		},
	}).Run(c.ctx)
	return nil
}

func (c *CleanCommand) sweeper() (*storage.Sweeper, time.Duration, error) {
	s := config.DefaultSchema()

	minAge, err := c.duration(s, c.minAge, "", "clean.min-age")
	if err != nil {
		return nil, 0, err
	}
	every, err := c.duration(s, c.every, "clean", "every")
	if err != nil {
		return nil, 0, err
	}

	root := c.tempDir
	if root == "" {
		root = s.ResolvePath(c.config, "paths.temp-dir")
	}
	if root == "" {
		root = storage.DefaultTempRoot()
	}

	logDir := c.tfDir
	if logDir == "" {
		logDir = s.ResolvePath(c.config, "game.dir")
	}
	if logDir == "" {
		if exe := s.ResolvePath(c.config, "game.exe"); exe != "" {
			logDir = filepath.Join(filepath.Dir(exe), "tf")
		}
	}

	return &storage.Sweeper{
		Root:   root,
		LogDir: logDir,
		MinAge: minAge,
		DryRun: c.dryRun,
	}, every, nil
}

// duration parses value, falling back to the config option.
func (c *CleanCommand) duration(s *config.ConfigSchema, value, section, key string) (time.Duration, error) {
	if value == "" {
		return s.ResolveDuration(c.config, section, key)
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", value)
	}
	return d, nil
}

func (c *CleanCommand) printReport(w io.Writer, report *storage.SweepReport) {
	verb := "Removed"
	if c.dryRun {
		verb = "Would remove"
	}
	for _, key := range report.Removed {
		_, _ = fmt.Fprintf(w, "%s %s\n", verb, key)
	}
	_, _ = fmt.Fprintf(w, "%s %d staging folder(s), skipped %d.\n", verb, len(report.Removed), len(report.Skipped))
}
