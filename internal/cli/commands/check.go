package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/apinni/apinni/internal/cli/ui"
	"github.com/apinni/apinni/internal/generator"
)

// NewCheckCommand creates the check command
func NewCheckCommand() *cobra.Command {
	var flags overrides

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify generated files are up to date",
		Long: `Run a generation pass in memory and compare it with the files on disk.

Differences are printed as line diffs and the command exits with a non-zero
status, which makes it suitable for CI.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setup(cmd, flags.noCache)
			if err != nil {
				return err
			}
			defer env.Close()

			if err := flags.apply(cmd, env.config); err != nil {
				return err
			}
			gen, err := env.generator(env.config)
			if err != nil {
				return err
			}

			diffs, err := gen.Check(cmd.Context())
			if err != nil && !errors.Is(err, generator.ErrStale) {
				return err
			}
			if len(diffs) == 0 {
				ui.WriteSuccess(env.stdout, "Generated files are up to date", env.noColor)
				return nil
			}

			printDiffs(env, diffs)
			paths := make([]string, len(diffs))
			for i, d := range diffs {
				paths[i] = d.Path
			}
			fmt.Fprint(env.stderr, ui.StaleError(paths, env.noColor))
			return generator.ErrStale
		},
	}

	flags.register(cmd)
	return cmd
}

func printDiffs(env *environment, diffs []generator.FileDiff) {
	bold := color.New(color.Bold)
	removed := color.New(color.FgRed)
	added := color.New(color.FgGreen)
	hunk := color.New(color.FgCyan)
	if env.noColor {
		for _, c := range []*color.Color{bold, removed, added, hunk} {
			c.DisableColor()
		}
	}

	for _, d := range diffs {
		if d.Missing {
			bold.Fprintf(env.stdout, "missing %s\n", d.Path)
			continue
		}
		bold.Fprintf(env.stdout, "--- %s\n", d.Path)
		for _, line := range strings.SplitAfter(d.Diff, "\n") {
			switch {
			case line == "":
			case strings.HasPrefix(line, "@@"):
				hunk.Fprint(env.stdout, line)
			case line[0] == '-':
				removed.Fprint(env.stdout, line)
			case line[0] == '+':
				added.Fprint(env.stdout, line)
			default:
				fmt.Fprint(env.stdout, line)
			}
		}
	}
}
