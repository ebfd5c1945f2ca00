package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/roach88/placesplit/internal/catalog"
	"github.com/roach88/placesplit/internal/config"
	"github.com/roach88/placesplit/internal/decode"
	"github.com/roach88/placesplit/internal/diag"
	"github.com/roach88/placesplit/internal/journal"
	"github.com/roach88/placesplit/internal/projection"
)

// ConvertOptions holds flags for the convert command.
type ConvertOptions struct {
	*RootOptions
	Out           string
	ProjectName   string
	Workers       int
	MaxNameLength int
	Placeholder   string
	Catalogs      []string
	Journal       string
	LogFile       string
	NoProgress    bool

	// Registry overrides the input decoders (for testing).
	// If nil, defaults to decode.NewRegistry.
	Registry *decode.Registry
}

// ConvertResult is the outcome of one conversion as printed by convert.
type ConvertResult struct {
	Input           string       `json:"input"`
	Output          string       `json:"output"`
	Project         string       `json:"project"`
	Planned         int          `json:"planned"`
	Materialized    int          `json:"materialized"`
	ManifestWritten bool         `json:"manifest_written"`
	Cancelled       bool         `json:"cancelled,omitempty"`
	Failures        []Diagnostic `json:"failures,omitempty"`
	Warnings        []Diagnostic `json:"warnings,omitempty"`
	Notices         int          `json:"notices"`
}

// NewConvertCommand creates the convert command.
func NewConvertCommand(rootOpts *RootOptions) *cobra.Command {
	return newConvertCommand(&ConvertOptions{RootOptions: rootOpts})
}

func newConvertCommand(opts *ConvertOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert <input>",
		Short: "Convert a place into a project directory",
		Long: `Convert a decoded place into a project directory.

The project is written to <out>/<input file name without extension>: one
directory or source file per instance, metadata sidecars for non-default
properties, and a default.project.json manifest. Nodes that cannot be
written are reported and the rest of the tree is still written.

Tree documents (.yaml, .yml, .json) are decoded directly. Binary and XML
place files need a registered decoder.

Example:
  placesplit convert game.yaml
  placesplit convert game.yaml --out ./projects --journal runs.db
  placesplit convert game.json --format json --no-progress`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Out, "out", "o", ".", "directory the project root is created in")
	cmd.Flags().StringVar(&opts.ProjectName, "project-name", "", "manifest project name (default: input file name)")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "concurrent file writes (default from config)")
	cmd.Flags().IntVar(&opts.MaxNameLength, "max-name-length", 0, "longest path component (default from config)")
	cmd.Flags().StringVar(&opts.Placeholder, "placeholder", "", "replacement for illegal name characters (default from config)")
	cmd.Flags().StringArrayVar(&opts.Catalogs, "catalog", nil, "extra CUE catalog file (repeatable)")
	cmd.Flags().StringVar(&opts.Journal, "journal", "", "record the run in this SQLite journal")
	cmd.Flags().StringVar(&opts.LogFile, "log-file", "", "also append every diagnostic to this file")
	cmd.Flags().BoolVar(&opts.NoProgress, "no-progress", false, "do not draw a progress bar")

	return cmd
}

// effectiveConfig applies the flags the user set on top of the config file.
func effectiveConfig(opts *ConvertOptions, cmd *cobra.Command) (*config.Config, error) {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("project-name") {
		cfg.ProjectName = opts.ProjectName
	}
	if flags.Changed("workers") {
		cfg.Workers = opts.Workers
	}
	if flags.Changed("max-name-length") {
		cfg.MaxNameLength = opts.MaxNameLength
	}
	if flags.Changed("placeholder") {
		cfg.Placeholder = opts.Placeholder
	}
	if flags.Changed("journal") {
		cfg.Journal = opts.Journal
	}
	cfg.Catalog = append(cfg.Catalog, opts.Catalogs...)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	return cfg, nil
}

// inputStem is the input file name without its extension.
func inputStem(input string) string {
	base := filepath.Base(input)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func runConvert(opts *ConvertOptions, input string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(formatter.GetErrWriter(), opts.Verbose)
	slog.SetDefault(logger)

	cfg, err := effectiveConfig(opts, cmd)
	if err != nil {
		return commandError(formatter, ErrCodeConfig, "failed to load config", err)
	}

	cat, err := catalog.Load(cfg.Catalog...)
	if err != nil {
		return commandError(formatter, ErrCodeCatalog, "failed to load catalog", err)
	}

	registry := opts.Registry
	if registry == nil {
		registry = decode.NewRegistry()
	}
	root, err := registry.DecodeFile(afero.NewOsFs(), input)
	if err != nil {
		return commandError(formatter, ErrCodeInput, "failed to read input", err)
	}

	stem := inputStem(input)
	outRoot := filepath.Join(opts.Out, stem)
	projectName := cfg.ProjectName
	if projectName == "" {
		projectName = stem
	}

	if formatter.Format == "text" {
		fmt.Fprintf(formatter.Writer, "placesplit %s\n", Version)
		fmt.Fprintf(formatter.Writer, "Converting %s -> %s\n", input, outRoot)
	}
	logger.Info("conversion starting", "input", input, "output", outRoot, "workers", cfg.Workers)

	sinks := []diag.Sink{diag.NewSlogSink(logger)}

	if opts.LogFile != "" {
		fileLogger, closer, err := openLogFile(opts.LogFile)
		if err != nil {
			return commandError(formatter, ErrCodeGeneric, "failed to open log file", err)
		}
		defer closer.Close()
		sinks = append(sinks, diag.NewSlogSink(fileLogger))
	}

	if formatter.Format == "text" && !opts.NoProgress && !opts.Verbose {
		sinks = append(sinks, newProgressSink(formatter.GetErrWriter()))
	}

	var run *journal.Run
	if cfg.Journal != "" {
		j, err := journal.Open(cfg.Journal)
		if err != nil {
			return commandError(formatter, ErrCodeJournal, "failed to open journal", err)
		}
		defer func() {
			if closeErr := j.Close(); closeErr != nil {
				slog.Error("error closing journal", "error", closeErr)
			}
		}()
		run, err = j.BeginRun(cmd.Context(), journal.RunInfo{Input: input, Output: outRoot, ToolVersion: Version})
		if err != nil {
			return commandError(formatter, ErrCodeJournal, "failed to record run", err)
		}
		sinks = append(sinks, run)
	}

	conv, err := projection.NewConverter(afero.NewOsFs(), projection.Options{
		Catalog:     cat,
		Naming:      cfg.Naming(),
		Workers:     cfg.Workers,
		ProjectName: projectName,
		Sink:        diag.MultiSink(sinks...),
	})
	if err != nil {
		return commandError(formatter, ErrCodeConfig, "failed to configure conversion", err)
	}

	// Setup signal handling for cancellation
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, cancelling conversion", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	report, runErr := conv.Run(ctx, root, outRoot)

	var runID string
	if run != nil {
		runID = run.ID
		if err := run.Finish(report); err != nil {
			slog.Error("failed to record run", "run", run.ID, "error", err)
		}
	}

	result := ConvertResult{
		Input:           input,
		Output:          outRoot,
		Project:         projectName,
		Planned:         report.Planned,
		Materialized:    report.Materialized,
		ManifestWritten: report.ManifestWritten,
		Cancelled:       report.Cancelled(),
		Failures:        toDiagnostics(report.Failures),
		Warnings:        toDiagnostics(report.Warnings),
		Notices:         len(report.Notices),
	}
	logger.Info("conversion finished", "planned", result.Planned, "materialized", result.Materialized, "failures", len(result.Failures))

	if err := outputConvertResult(formatter, result, runID, runErr); err != nil {
		return WrapExitError(ExitCommandError, "failed to write output", err)
	}
	if runErr != nil {
		var re *diag.RunError
		if errors.As(runErr, &re) {
			return WrapExitError(ExitFailure, fmt.Sprintf("conversion failed with %d error(s)", len(re.Failures)), runErr)
		}
		return WrapExitError(ExitFailure, "conversion failed", runErr)
	}
	return nil
}

// outputConvertResult prints the result: the full record as JSON, or the
// diagnostic tables and a summary line as text.
func outputConvertResult(formatter *OutputFormatter, result ConvertResult, runID string, runErr error) error {
	if formatter.Format == "json" {
		resp := CLIResponse{Status: "ok", Data: result, RunID: runID}
		if runErr != nil {
			code := ErrCodeConversion
			if result.Cancelled {
				code = ErrCodeGeneric
			}
			resp.Status = "error"
			resp.Error = &CLIError{
				Code:    code,
				Message: fmt.Sprintf("%d of %d node(s) written", result.Materialized, result.Planned),
			}
		}
		return formatter.encode(resp)
	}

	w := formatter.Writer
	if len(result.Failures) > 0 {
		fmt.Fprintf(w, "\n✗ %d failure(s)\n", len(result.Failures))
		if err := renderTable(w, diagnosticHeader, diagnosticRows(result.Failures)); err != nil {
			return err
		}
	}
	if len(result.Warnings) > 0 {
		fmt.Fprintf(w, "\n%d warning(s)\n", len(result.Warnings))
		if err := renderTable(w, diagnosticHeader, diagnosticRows(result.Warnings)); err != nil {
			return err
		}
	}

	switch {
	case result.Cancelled:
		fmt.Fprintf(w, "\n✗ Cancelled after %d of %d node(s); no manifest written\n", result.Materialized, result.Planned)
	case runErr != nil:
		fmt.Fprintf(w, "\n✗ Wrote %d of %d node(s) to %s\n", result.Materialized, result.Planned, result.Output)
	default:
		fmt.Fprintf(w, "\n✓ Done: wrote %d node(s) to %s\n", result.Materialized, result.Output)
	}
	if runID != "" {
		fmt.Fprintf(w, "Run %s recorded\n", runID)
	}
	return nil
}
