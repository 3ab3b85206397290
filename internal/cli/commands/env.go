package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/apinni/apinni/internal/cache"
	"github.com/apinni/apinni/internal/cli/config"
	"github.com/apinni/apinni/internal/cli/ui"
	"github.com/apinni/apinni/internal/generator"
	"github.com/apinni/apinni/internal/loader"
)

// newLoader builds the package loader of a generator. Tests replace it.
var newLoader = func(dir string, exclude []string, logger *zap.Logger) generator.ProgramLoader {
	return loader.New(dir, exclude, logger)
}

// environment is the state shared by commands that run passes.
type environment struct {
	config  *config.Config
	logger  *zap.Logger
	cache   cache.Cache
	noColor bool
	stdout  io.Writer
	stderr  io.Writer
}

func noColor(cmd *cobra.Command) bool {
	if v, err := cmd.Flags().GetBool("no-color"); err == nil && v {
		return true
	}
	return ui.NoColor(cmd.OutOrStdout())
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	dir, _ := cmd.Flags().GetString("dir")
	file, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(dir, file)
	if err != nil {
		fmt.Fprint(cmd.ErrOrStderr(), ui.ConfigError(err.Error(), noColor(cmd)))
		return nil, err
	}
	return cfg, nil
}

// setup loads the configuration, the logger and, unless skipCache is set,
// the configured cache backend.
func setup(cmd *cobra.Command, skipCache bool) (*environment, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	verbose, _ := cmd.Flags().GetBool("verbose")
	logger, err := newLogger(verbose)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	env := &environment{
		config:  cfg,
		logger:  logger,
		noColor: noColor(cmd),
		stdout:  cmd.OutOrStdout(),
		stderr:  cmd.ErrOrStderr(),
	}
	if !skipCache {
		c, err := cache.Open(cfg.CacheOptions(), logger)
		if err != nil {
			// A broken cache only costs speed.
			logger.Warn("cache disabled", zap.Error(err))
		} else {
			env.cache = c
		}
	}
	return env, nil
}

func (e *environment) generator(cfg *config.Config) (*generator.Generator, error) {
	gc := cfg.Generator()
	opts := []generator.Option{
		generator.WithLogger(e.logger),
		generator.WithVersion(Version),
		generator.WithLoader(newLoader(gc.Dir, gc.Exclude, e.logger)),
	}
	if e.cache != nil {
		opts = append(opts, generator.WithCache(e.cache))
	}
	return generator.New(gc, opts...)
}

func (e *environment) Close() {
	if c, ok := e.cache.(io.Closer); ok {
		c.Close()
	}
	e.logger.Sync()
}

// warnDiagnostics prints registration problems that did not stop a pass.
func (e *environment) warnDiagnostics(res *generator.Result) {
	if len(res.Diagnostics) == 0 {
		return
	}
	details := make([]string, len(res.Diagnostics))
	for i, d := range res.Diagnostics {
		details[i] = d.Error()
	}
	fmt.Fprint(e.stderr, ui.Warning(fmt.Sprintf("%d directive(s) ignored", len(details)), details, e.noColor))
}
