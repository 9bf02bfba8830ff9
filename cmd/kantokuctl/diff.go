package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ashita-ai/kantoku/internal/diff"
)

// DiffCmd compares two script files line by line.
func DiffCmd() *cobra.Command {
	var (
		algorithm string
		unified   bool
		exitCode  bool
	)
	cmd := &cobra.Command{
		Use:   "diff <original> <candidate>",
		Short: "Compare two script files line by line",
		Long: `Compare two script files line by line. Use "-" to read one side from stdin.

The greedy algorithm matches the dashboard's diff viewer; "matcher" aligns on
the longest common blocks and gives tighter output on heavy rewrites.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := diff.ValidateAlgorithm(algorithm); err != nil {
				return err
			}
			original, err := readInput(args[0])
			if err != nil {
				return err
			}
			candidate, err := readInput(args[1])
			if err != nil {
				return err
			}

			res := diff.Compute(algorithm, original, candidate)
			out := cmd.OutOrStdout()
			if unified {
				fmt.Fprint(out, diff.Unified(res))
			} else {
				printDiff(out, res)
			}
			if exitCode && res.Changed() {
				return errChanged
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&algorithm, "algorithm", "a", diff.AlgorithmGreedy, "diff algorithm: greedy or matcher")
	cmd.Flags().BoolVarP(&unified, "unified", "u", false, "print plain unified-style lines without a summary")
	cmd.Flags().BoolVar(&exitCode, "exit-code", false, "exit with status 1 when the scripts differ")
	return cmd
}

var errChanged = errors.New("scripts differ")

func printDiff(w io.Writer, res diff.Result) {
	added := color.New(color.FgGreen)
	removed := color.New(color.FgRed)
	faint := color.New(color.Faint)

	for _, l := range res.Lines {
		switch l.Kind {
		case diff.Added:
			added.Fprintf(w, "+ %s\n", l.Text)
		case diff.Removed:
			removed.Fprintf(w, "- %s\n", l.Text)
		default:
			fmt.Fprintf(w, "  %s\n", l.Text)
		}
	}

	fmt.Fprintln(w)
	faint.Fprintf(w, "%d unchanged, ", res.Summary.Same)
	added.Fprintf(w, "%d added", res.Summary.Added)
	faint.Fprint(w, ", ")
	removed.Fprintf(w, "%d removed", res.Summary.Removed)
	fmt.Fprintf(w, " (%s)\n", res.Algorithm)
}
