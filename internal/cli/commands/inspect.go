package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/apinni/apinni/internal/cli/ui"
)

// NewInspectCommand creates the inspect command
func NewInspectCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <Name>...",
		Short: "Print the TypeScript rendering of named Go types",
		Long: `Resolve the named declarations in the configured packages and print the
TypeScript they generate, including every type they reference.

Names may be bare (User) or package qualified (models.User).

Examples:
  apinni inspect User
  apinni inspect models.Order models.LineItem`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setup(cmd, true)
			if err != nil {
				return err
			}
			defer env.Close()

			gen, err := env.generator(env.config)
			if err != nil {
				return err
			}
			out, err := gen.Inspect(cmd.Context(), args)
			if err != nil {
				return err
			}

			fmt.Fprint(env.stdout, out.Text)
			for _, name := range out.Missing {
				suggestions := ui.FindSimilar(name, out.Known, nil)
				fmt.Fprint(env.stderr, ui.TypeNotFoundError(name, suggestions, env.noColor))
			}
			return nil
		},
	}

	return cmd
}
