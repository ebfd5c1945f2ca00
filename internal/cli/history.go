package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/placesplit/internal/journal"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Journal string
	Limit   int
	Events  bool
	Kind    string
	Delete  bool
}

// RunDetail is one run with its diagnostics and, on request, its events.
type RunDetail struct {
	Run         journal.RunRecord          `json:"run"`
	Diagnostics []journal.DiagnosticRecord `json:"diagnostics"`
	Events      []journal.EventRecord      `json:"events,omitempty"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List recorded conversion runs",
		Long: `List the conversion runs recorded in a journal, newest first.

With a run ID, print that run's failures, warnings and notices, and with
--events every event it emitted.

Example:
  placesplit history --journal runs.db
  placesplit history --journal runs.db 0190f3c2-... --events --kind write_failed
  placesplit history --journal runs.db 0190f3c2-... --delete`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var id string
			if len(args) == 1 {
				id = args[0]
			}
			return runHistory(opts, id, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Journal, "journal", "", "SQLite journal (default from config)")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "number of runs to list (0 for all)")
	cmd.Flags().BoolVar(&opts.Events, "events", false, "also print the run's events")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "only print events of this kind")
	cmd.Flags().BoolVar(&opts.Delete, "delete", false, "delete the run instead of printing it")

	return cmd
}

func runHistory(opts *HistoryOptions, id string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	path := opts.Journal
	if path == "" {
		cfg, err := loadConfig(opts.RootOptions)
		if err != nil {
			return commandError(formatter, ErrCodeConfig, "failed to load config", err)
		}
		path = cfg.Journal
	}
	if path == "" {
		return commandError(formatter, ErrCodeJournal, "no journal", errors.New("set --journal or journal in the config file"))
	}
	if (opts.Delete || opts.Events) && id == "" {
		return commandError(formatter, ErrCodeGeneric, "invalid arguments", errors.New("--delete and --events need a run ID"))
	}
	if _, err := os.Stat(path); err != nil {
		return commandError(formatter, ErrCodeJournal, "failed to open journal", err)
	}

	j, err := journal.Open(path)
	if err != nil {
		return commandError(formatter, ErrCodeJournal, "failed to open journal", err)
	}
	defer func() {
		if closeErr := j.Close(); closeErr != nil {
			slog.Error("error closing journal", "error", closeErr)
		}
	}()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	switch {
	case id == "":
		return listRuns(ctx, formatter, j, opts.Limit)
	case opts.Delete:
		if err := j.Delete(ctx, id); err != nil {
			return runLookupError(formatter, err)
		}
		return formatter.Success(fmt.Sprintf("✓ Deleted run %s", id))
	default:
		return showRun(ctx, formatter, j, id, opts)
	}
}

func runLookupError(formatter *OutputFormatter, err error) error {
	if errors.Is(err, journal.ErrRunNotFound) {
		_ = formatter.Error(ErrCodeJournal, err.Error(), nil)
		return WrapExitError(ExitFailure, "run not found", err)
	}
	return commandError(formatter, ErrCodeJournal, "failed to read journal", err)
}

func listRuns(ctx context.Context, formatter *OutputFormatter, j *journal.Journal, limit int) error {
	runs, err := j.Runs(ctx, limit)
	if err != nil {
		return commandError(formatter, ErrCodeJournal, "failed to read journal", err)
	}
	if formatter.Format == "json" {
		return formatter.Success(runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(formatter.Writer, "No runs recorded")
		return nil
	}

	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			r.ID,
			r.StartedAt.Local().Format(time.DateTime),
			string(r.Status),
			r.Input,
			fmt.Sprintf("%d/%d", r.Materialized, r.Planned),
			strconv.Itoa(r.Failures),
			strconv.Itoa(r.Warnings),
		})
	}
	header := []string{"Run", "Started", "Status", "Input", "Written", "Failures", "Warnings"}
	if err := renderTable(formatter.Writer, header, rows); err != nil {
		return WrapExitError(ExitCommandError, "failed to render table", err)
	}
	return nil
}

func showRun(ctx context.Context, formatter *OutputFormatter, j *journal.Journal, id string, opts *HistoryOptions) error {
	run, err := j.Run(ctx, id)
	if err != nil {
		return runLookupError(formatter, err)
	}
	detail := RunDetail{Run: run}
	if detail.Diagnostics, err = j.Diagnostics(ctx, id); err != nil {
		return commandError(formatter, ErrCodeJournal, "failed to read journal", err)
	}
	if opts.Events {
		if detail.Events, err = j.Events(ctx, id, opts.Kind); err != nil {
			return commandError(formatter, ErrCodeJournal, "failed to read journal", err)
		}
	}
	if formatter.Format == "json" {
		return formatter.Success(detail)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "Run %s (%s)\n", run.ID, run.Status)
	fmt.Fprintf(w, "  %s -> %s\n", run.Input, run.Output)
	fmt.Fprintf(w, "  started %s, took %s\n", run.StartedAt.Local().Format(time.DateTime), run.FinishedAt.Sub(run.StartedAt))
	fmt.Fprintf(w, "  wrote %d of %d node(s)\n", run.Materialized, run.Planned)

	if len(detail.Diagnostics) > 0 {
		rows := make([][]string, 0, len(detail.Diagnostics))
		for _, d := range detail.Diagnostics {
			where := d.Path
			if where == "" {
				where = d.Node
			}
			rows = append(rows, []string{d.Severity, d.Code, where, d.Message})
		}
		fmt.Fprintln(w)
		if err := renderTable(w, []string{"Severity", "Code", "Where", "Message"}, rows); err != nil {
			return WrapExitError(ExitCommandError, "failed to render table", err)
		}
	}

	if len(detail.Events) > 0 {
		rows := make([][]string, 0, len(detail.Events))
		for _, e := range detail.Events {
			where := e.Path
			if where == "" {
				where = e.Node
			}
			rows = append(rows, []string{strconv.FormatInt(e.Seq, 10), e.Kind, where, e.Detail, e.Error})
		}
		fmt.Fprintln(w)
		if err := renderTable(w, []string{"Seq", "Kind", "Where", "Detail", "Error"}, rows); err != nil {
			return WrapExitError(ExitCommandError, "failed to render table", err)
		}
	}
	return nil
}
