package commands

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/apinni/apinni/internal/cli/config"
	"github.com/apinni/apinni/internal/cli/ui"
	"github.com/apinni/apinni/internal/generator"
)

// overrides are the flags shared by generate, watch and check.
type overrides struct {
	output  string
	filter  string
	openapi bool
	schema  bool
	noCache bool
}

func (o *overrides) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.output, "output", "o", "", "Output directory (overrides config)")
	cmd.Flags().StringVar(&o.filter, "filter", "", `Endpoint filter expression, e.g. 'domain == "admin"'`)
	cmd.Flags().BoolVar(&o.openapi, "openapi", false, "Also write <domain>-openapi.json")
	cmd.Flags().BoolVar(&o.schema, "schema", false, "Also write <domain>-schema.json")
	cmd.Flags().BoolVar(&o.noCache, "no-cache", false, "Skip the pass cache")
}

func (o *overrides) apply(cmd *cobra.Command, cfg *config.Config) error {
	if cmd.Flags().Changed("output") {
		cfg.Output = o.output
	}
	if cmd.Flags().Changed("filter") {
		if _, err := generator.CompileFilter(o.filter); err != nil {
			return err
		}
		cfg.Filter = o.filter
	}
	if o.openapi {
		cfg.OpenAPI = true
	}
	if o.schema {
		cfg.SchemaFiles = true
	}
	return nil
}

// NewGenerateCommand creates the generate command
func NewGenerateCommand() *cobra.Command {
	var flags overrides

	cmd := &cobra.Command{
		Use:     "generate",
		Aliases: []string{"gen", "g"},
		Short:   "Generate TypeScript declarations",
		Long: `Load the configured packages, collect annotated endpoints and write one
<domain>-types.d.ts file per domain into the output directory.

Files whose content did not change are left untouched.

Examples:
  apinni generate
  apinni generate --output web/src/api --openapi
  apinni generate --filter 'domain == "admin"'`,
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

			var res *generator.Result
			err = ui.WithSpinner(env.stderr, "Generating types", env.noColor, func() error {
				var err error
				res, err = gen.Run(cmd.Context())
				return err
			})
			if err != nil {
				return err
			}

			env.warnDiagnostics(res)
			printSummary(env, res)
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}

func printSummary(env *environment, res *generator.Result) {
	if len(res.Domains) == 0 {
		fmt.Fprint(env.stdout, ui.Info("No endpoints found", env.noColor))
		return
	}

	table := ui.NewTable(env.stdout, []string{"DOMAIN", "ENDPOINTS", "FILES"}, &ui.TableOptions{NoColor: env.noColor})
	for _, d := range res.Domains {
		names := make([]string, len(d.Files))
		for i, f := range d.Files {
			names[i] = f.Name
		}
		table.AddRow(d.Domain, strconv.Itoa(len(d.Endpoints)), strings.Join(names, ", "))
	}
	table.Render()

	if len(res.Written) == 0 {
		ui.WriteSuccess(env.stdout, "Everything up to date", env.noColor)
		return
	}
	msg := fmt.Sprintf("Wrote %d file(s) in %s", len(res.Written), res.Elapsed.Round(time.Millisecond))
	if res.Cached {
		msg += " (cached)"
	}
	ui.WriteSuccess(env.stdout, msg, env.noColor)
}
