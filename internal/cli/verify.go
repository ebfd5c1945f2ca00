package cli

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"strconv"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/roach88/placesplit/internal/catalog"
	"github.com/roach88/placesplit/internal/instance"
	"github.com/roach88/placesplit/internal/rebuild"
	"github.com/roach88/placesplit/internal/syncrule"
)

// VerifyOptions holds flags for the verify command.
type VerifyOptions struct {
	*RootOptions
	Catalogs []string
}

// VerifyResult summarizes a rebuilt project.
type VerifyResult struct {
	Project   string         `json:"project"`
	Instances int            `json:"instances"`
	Entries   int            `json:"entries"`
	Files     int            `json:"files"`
	Classes   map[string]int `json:"classes"`
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VerifyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "verify <project-dir>",
		Short: "Rebuild the instance tree from a project directory",
		Long: `Rebuild the instance tree from a project directory.

The manifest and every metadata file are validated against their schemas,
then each manifest entry is read back from the layout. A missing entry, a
file where a directory is expected or a class that disagrees with its
metadata fails verification.

Example:
  placesplit verify ./Place
  placesplit verify ./Place --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringArrayVar(&opts.Catalogs, "catalog", nil, "extra CUE catalog file (repeatable)")

	return cmd
}

func runVerify(opts *VerifyOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	info, err := os.Stat(dir)
	if err != nil {
		return commandError(formatter, ErrCodeInput, "failed to open project", err)
	}
	if !info.IsDir() {
		return commandError(formatter, ErrCodeInput, "failed to open project", fmt.Errorf("%s is not a directory", dir))
	}

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return commandError(formatter, ErrCodeConfig, "failed to load config", err)
	}
	cat, err := catalog.Load(append(cfg.Catalog, opts.Catalogs...)...)
	if err != nil {
		return commandError(formatter, ErrCodeCatalog, "failed to load catalog", err)
	}

	formatter.VerboseLog("Reading project %s", dir)
	project, err := rebuild.NewLoader(afero.NewOsFs(), syncrule.New(cat)).Load(dir)
	if err != nil {
		details := map[string]string{"dir": dir}
		var rerr *rebuild.Error
		if errors.As(err, &rerr) {
			details["path"] = rerr.Path
		}
		_ = formatter.Error(ErrCodeLayout, err.Error(), details)
		return WrapExitError(ExitFailure, "verification failed", err)
	}

	result := VerifyResult{
		Project:   project.Manifest.Name,
		Instances: instance.Count(project.Tree),
		Entries:   project.Manifest.Count(),
		Files:     project.Files,
		Classes:   map[string]int{},
	}
	instance.Walk(project.Tree, func(node *instance.Instance, _ []string) bool {
		result.Classes[node.Class]++
		return true
	})

	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ %s: %d instance(s) rebuilt from %d file(s)\n\n", result.Project, result.Instances, result.Files)
	classes := slices.Sorted(maps.Keys(result.Classes))
	rows := make([][]string, 0, len(classes))
	for _, c := range classes {
		rows = append(rows, []string{c, strconv.Itoa(result.Classes[c])})
	}
	if err := renderTable(formatter.Writer, []string{"Class", "Count"}, rows); err != nil {
		return WrapExitError(ExitCommandError, "failed to render table", err)
	}
	return nil
}
