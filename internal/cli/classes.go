package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/placesplit/internal/catalog"
	"github.com/roach88/placesplit/internal/syncrule"
)

// ClassesOptions holds flags for the classes command.
type ClassesOptions struct {
	*RootOptions
	Catalogs []string
}

// ClassInfo is one catalog entry as printed by the classes command.
type ClassInfo struct {
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	RunContext string `json:"run_context,omitempty"`
	Extension  string `json:"extension,omitempty"`
	Source     string `json:"source,omitempty"`
	Defaults   int    `json:"defaults"`
}

// NewClassesCommand creates the classes command.
func NewClassesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ClassesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "classes",
		Short: "Print the effective class catalog",
		Long: `Print every class the catalog knows and how it is laid out on disk.

The catalog is the built-in table extended by the catalog files named in the
config file and by --catalog.

Example:
  placesplit classes
  placesplit classes --catalog ./classes/custom.cue --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClasses(opts, cmd)
		},
	}

	cmd.Flags().StringArrayVar(&opts.Catalogs, "catalog", nil, "extra CUE catalog file (repeatable)")

	return cmd
}

func runClasses(opts *ClassesOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return commandError(formatter, ErrCodeConfig, "failed to load config", err)
	}
	cat, err := catalog.Load(append(cfg.Catalog, opts.Catalogs...)...)
	if err != nil {
		return commandError(formatter, ErrCodeCatalog, "failed to load catalog", err)
	}

	infos := classInfos(cat)
	if formatter.Format == "json" {
		return formatter.Success(infos)
	}

	rows := make([][]string, 0, len(infos))
	for _, c := range infos {
		rows = append(rows, []string{c.Name, c.Kind, c.Extension, c.Source, strconv.Itoa(c.Defaults)})
	}
	if err := renderTable(formatter.Writer, []string{"Class", "Kind", "Extension", "Source", "Defaults"}, rows); err != nil {
		return WrapExitError(ExitCommandError, "failed to render table", err)
	}
	fmt.Fprintf(formatter.Writer, "%d classes\n", len(infos))
	return nil
}

func classInfos(cat *catalog.Catalog) []ClassInfo {
	classes := cat.Classes()
	out := make([]ClassInfo, 0, len(classes))
	for _, c := range classes {
		info := ClassInfo{
			Name:     c.Name,
			Kind:     string(c.Kind),
			Defaults: len(c.Defaults),
		}
		if c.Kind == catalog.KindScript {
			info.RunContext = string(c.RunContext)
			info.Extension = "." + syncrule.Extension(c.RunContext)
			info.Source = c.SourceProperty
		}
		out = append(out, info)
	}
	return out
}
