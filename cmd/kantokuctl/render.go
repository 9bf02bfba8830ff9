package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ashita-ai/kantoku/internal/substitute"
)

// RenderCmd substitutes tag values into a template file.
func RenderCmd() *cobra.Command {
	var (
		sets       []string
		valuesFile string
		strict     bool
	)
	cmd := &cobra.Command{
		Use:   "render <template>",
		Short: "Substitute {{tag}} values into a template",
		Long: `Substitute {{tag}} values into a template. Values come from a YAML file of
string keys (--values) and from repeated --set key=value flags, which win.
Tags with no value are left as written and listed on stderr.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			template, err := readInput(args[0])
			if err != nil {
				return err
			}
			values, err := loadValues(valuesFile, sets)
			if err != nil {
				return err
			}

			fmt.Fprint(cmd.OutOrStdout(), substitute.Apply(template, values))

			missing := substitute.Unresolved(template, values)
			if len(missing) == 0 {
				return nil
			}
			warn := color.New(color.FgYellow)
			warn.Fprintf(cmd.ErrOrStderr(), "\nunresolved tags: %s\n", strings.Join(missing, ", "))
			if strict {
				return fmt.Errorf("%d unresolved tag(s)", len(missing))
			}
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&sets, "set", nil, "tag value as key=value (repeatable)")
	cmd.Flags().StringVarP(&valuesFile, "values", "f", "", "YAML file mapping tag names to values")
	cmd.Flags().BoolVar(&strict, "strict", false, "fail when any tag is left unresolved")
	return cmd
}

// TagsCmd lists the distinct tags used in a template.
func TagsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tags <template>",
		Short: "List the {{tag}} names used in a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			template, err := readInput(args[0])
			if err != nil {
				return err
			}
			for _, name := range substitute.Tags(template) {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func loadValues(path string, sets []string) (map[string]string, error) {
	values := make(map[string]string)
	if path != "" {
		data, err := os.ReadFile(path) //nolint:gosec // operator-supplied path
		if err != nil {
			return nil, fmt.Errorf("read values: %w", err)
		}
		var raw map[string]any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse values %s: %w", path, err)
		}
		for k, v := range raw {
			switch v := v.(type) {
			case nil:
				values[k] = ""
			case map[string]any, []any:
				return nil, fmt.Errorf("values %s: %q must be a scalar", path, k)
			default:
				values[k] = fmt.Sprint(v)
			}
		}
	}
	for _, s := range sets {
		k, v, ok := strings.Cut(s, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("--set expects key=value, got %q", s)
		}
		values[k] = v
	}
	return values, nil
}
