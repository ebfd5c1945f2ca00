package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/roach88/placesplit/internal/config"
)

// Version is the tool version, set at build time with
// -ldflags "-X github.com/roach88/placesplit/internal/cli.Version=...".
var Version = "dev"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Config  string // config file; empty means ./placesplit.yaml if present
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the placesplit CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "placesplit",
		Short:         "placesplit - split a place into a source tree",
		Long:          "Projects a scene instance tree onto a directory of source files, metadata sidecars and a project manifest.",
		Version:       Version,
		SilenceErrors: true, // main prints the returned error
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.Config, "config", "c", "", "config file (default ./"+config.DefaultFile+" if present)")

	cmd.AddCommand(NewConvertCommand(opts))
	cmd.AddCommand(NewVerifyCommand(opts))
	cmd.AddCommand(NewClassesCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// loadConfig reads the --config file, or the default file when it exists.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	fsys := afero.NewOsFs()
	if opts.Config != "" {
		return config.Load(fsys, opts.Config)
	}
	return config.LoadOptional(fsys, config.DefaultFile)
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Progress and verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}
