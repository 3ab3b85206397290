package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/apinni/apinni/internal/cache"
	"github.com/apinni/apinni/internal/cli/config"
	"github.com/apinni/apinni/internal/cli/ui"
)

// NewInitCommand creates the init command
func NewInitCommand() *cobra.Command {
	var (
		yes   bool
		force bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create an apinni.yaml configuration",
		Long: `Create apinni.yaml in the project directory.

You are prompted for the output directory, default domain, cache backend and
optional outputs. Pass --yes to accept the defaults without prompting.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			path := filepath.Join(dir, config.FileName)
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}

			cfg := config.Default()
			if !yes {
				if err := promptConfig(cfg); err != nil {
					return err
				}
			}

			if err := config.Save(path, cfg); err != nil {
				return err
			}
			ui.WriteSuccess(cmd.OutOrStdout(), fmt.Sprintf("Created %s", path), noColor(cmd))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Accept defaults without prompting")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing config")

	return cmd
}

func promptConfig(cfg *config.Config) error {
	if err := survey.AskOne(&survey.Input{
		Message: "Output directory:",
		Default: cfg.Output,
	}, &cfg.Output, survey.WithValidator(survey.Required)); err != nil {
		return err
	}

	if err := survey.AskOne(&survey.Input{
		Message: "Default domain:",
		Help:    "Domain of controllers without an //apinni:domain directive",
		Default: cfg.DefaultDomain,
	}, &cfg.DefaultDomain, survey.WithValidator(survey.Required)); err != nil {
		return err
	}

	if err := survey.AskOne(&survey.Select{
		Message: "Cache backend:",
		Options: cache.Drivers,
		Default: cfg.Cache.Driver,
	}, &cfg.Cache.Driver); err != nil {
		return err
	}
	if cfg.Cache.Driver == cache.DriverRedis || cfg.Cache.Driver == cache.DriverPostgres || cfg.Cache.Driver == cache.DriverPgx {
		if err := survey.AskOne(&survey.Input{
			Message: "Cache URL:",
		}, &cfg.Cache.URL, survey.WithValidator(survey.Required)); err != nil {
			return err
		}
	}

	if err := survey.AskOne(&survey.Confirm{
		Message: "Write OpenAPI documents?",
		Default: cfg.OpenAPI,
	}, &cfg.OpenAPI); err != nil {
		return err
	}
	return survey.AskOne(&survey.Confirm{
		Message: "Write JSON schema dumps?",
		Default: cfg.SchemaFiles,
	}, &cfg.SchemaFiles)
}
