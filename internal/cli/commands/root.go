package commands

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// Version information - set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
	GoVersion = "unknown"
)

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "apinni",
		Short: "Generate TypeScript API types from annotated Go handlers",
		Long: color.CyanString(`Apinni - TypeScript types for Go HTTP APIs

Apinni reads //apinni: directives on Go controllers and handler methods and
writes one TypeScript declaration file per API domain.

Directives:
  //apinni:controller /users     path prefix of a controller type
  //apinni:endpoint GET /:id     method and path of a handler
  //apinni:request  Model        request body type
  //apinni:response 404 Model    response type per status
  //apinni:domain admin          output domains
  //apinni:disabled !admin       exclude from domains`),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", "", "Config file (default: apinni.yaml in --dir)")
	flags.StringP("dir", "C", ".", "Project directory")
	flags.BoolP("verbose", "v", false, "Enable debug logging")
	flags.Bool("no-color", false, "Disable colored output")

	rootCmd.AddCommand(NewVersionCommand())
	rootCmd.AddCommand(NewInitCommand())
	rootCmd.AddCommand(NewGenerateCommand())
	rootCmd.AddCommand(NewWatchCommand())
	rootCmd.AddCommand(NewCheckCommand())
	rootCmd.AddCommand(NewInspectCommand())
	rootCmd.AddCommand(NewCompletionCommand())

	return rootCmd
}

// Execute runs the root command
func Execute() error {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		errorColor := color.New(color.FgRed, color.Bold)
		errorColor.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
		return err
	}
	return nil
}
