package command

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/joeycumines/renderdemo/internal/config"
	"github.com/joeycumines/renderdemo/internal/storage"
)

// HistoryCommand lists past runs.
type HistoryCommand struct {
	*BaseCommand
	config *config.Config

	// Now is the clock used by -prune (default time.Now).
	Now func() time.Time

	limit int
	prune bool
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(cfg *config.Config) *HistoryCommand {
	return &HistoryCommand{
		BaseCommand: NewBaseCommand(
			"history",
			"List recent runs",
			"history [-n count] [-prune]",
		),
		config: cfg,
	}
}

// SetupFlags configures the flags for the history command.
func (c *HistoryCommand) SetupFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.limit, "n", -1, "Number of runs to list (default: [history] limit, 0 lists all)")
	fs.BoolVar(&c.prune, "prune", false, "Apply the retention policy before listing")
}

// Execute runs the history command.
func (c *HistoryCommand) Execute(args []string, stdout, stderr io.Writer) error {
	if len(args) > 0 {
		_, _ = fmt.Fprintf(stderr, "unexpected arguments: %v\n", args)
		return &ExitError{Code: 2, Err: errors.New("unexpected arguments")}
	}

	s := config.DefaultSchema()
	dir := s.ResolvePath(c.config, "paths.history-dir")
	if dir == "" {
		var err error
		if dir, err = storage.DefaultHistoryDirectory(); err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return &ExitError{Code: 1, Err: err}
		}
	}
	h := storage.History{Dir: dir}

	if c.prune {
		r, err := retention(s, c.config)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return &ExitError{Code: 2, Err: err}
		}
		now := time.Now
		if c.Now != nil {
			now = c.Now
		}
		removed, err := h.Prune(r, now())
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return &ExitError{Code: 1, Err: err}
		}
		_, _ = fmt.Fprintf(stdout, "Pruned %d run(s).\n", len(removed))
	}

	records, err := h.List()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return &ExitError{Code: 1, Err: err}
	}

	limit := c.limit
	if limit < 0 {
		v := s.ResolveCommand(c.config, "history", "limit")
		if limit, err = strconv.Atoi(v); err != nil {
			err = fmt.Errorf("option history.limit: expected int, got %q", v)
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return &ExitError{Code: 2, Err: err}
		}
	}
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}

	if len(records) == 0 {
		_, _ = fmt.Fprintln(stdout, "No runs recorded.")
		return nil
	}
	w := tabwriter.NewWriter(stdout, 0, 8, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "KEY\tSTARTED\tOUTCOME\tDURATION\tDEMO")
	for _, r := range records {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			r.Key,
			r.StartedAt.Local().Format(time.DateTime),
			r.Outcome,
			r.Duration().Round(time.Second),
			r.Demo,
		)
	}
	return w.Flush()
}
