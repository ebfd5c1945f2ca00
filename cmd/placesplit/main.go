// Command placesplit projects a place's instance tree onto a directory of
// source files, metadata sidecars and a project manifest.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/placesplit/internal/cli"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = ""

func main() {
	if version != "" {
		cli.Version = version
	}
	if err := cli.NewRootCommand().Execute(); err != nil {
		// Subcommands silence cobra's own error printing.
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
