// Command kantokuctl works with script templates and versions offline:
// it previews tag substitution and diffs two script files without a server.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var noColor bool
	rootCmd := &cobra.Command{
		Use:     "kantokuctl",
		Short:   "Preview, render and diff Kantoku scripts",
		Version: version,
		Long: `kantokuctl renders {{tag}} templates against a set of values and
compares two script bodies line by line, the same way the Kantoku server does.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				color.NoColor = true
			}
		},
	}
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(DiffCmd())
	rootCmd.AddCommand(RenderCmd())
	rootCmd.AddCommand(TagsCmd())
	return rootCmd
}

func readInput(path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path) //nolint:gosec // operator-supplied path
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}
