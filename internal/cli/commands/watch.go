package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/apinni/apinni/internal/cli/config"
	"github.com/apinni/apinni/internal/cli/ui"
	"github.com/apinni/apinni/internal/generator"
	"github.com/apinni/apinni/internal/watch"
)

// NewWatchCommand creates the watch command
func NewWatchCommand() *cobra.Command {
	var (
		flags overrides
		serve bool
		port  int
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Regenerate on every source change",
		Long: `Generate once, then watch the project's .go files and regenerate after
every change. Changes are debounced and passes never overlap.

With --serve a development server exposes the latest output:
  /types/{domain}   generated declarations
  /schema/{domain}  JSON schema dump
  /healthz          status of the last pass
  /ws               pass notifications over a websocket

Examples:
  apinni watch
  apinni watch --serve --port 7331`,
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
			if cmd.Flags().Changed("port") {
				env.config.Watch.Port = port
			}

			builder, err := newReloadingBuilder(env, func(cfg *config.Config) error {
				return flags.apply(cmd, cfg)
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			session := watch.NewSession(builder, env.config.Session(serve), env.logger)
			session.OnResult = func(res *generator.Result, err error) {
				if err != nil {
					fmt.Fprint(env.stderr, ui.FormatError(ui.ErrorOptions{
						Context: "generation failed",
						Problem: err.Error(),
						NoColor: env.noColor,
					}))
					return
				}
				env.warnDiagnostics(res)
				if len(res.Written) > 0 {
					ui.WriteSuccess(env.stdout, fmt.Sprintf("Regenerated %d file(s) in %s", len(res.Written), res.Elapsed.Round(time.Millisecond)), env.noColor)
				}
			}
			session.OnConfigChange = func(files []string) {
				builder.reload()
			}

			if serve {
				fmt.Fprint(env.stdout, ui.Info(fmt.Sprintf("Serving on http://localhost:%d", env.config.Watch.Port), env.noColor))
			}
			fmt.Fprint(env.stdout, ui.Info("Watching for changes (Ctrl+C to stop)", env.noColor))
			return session.Run(ctx)
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&serve, "serve", false, "Serve the latest output over HTTP")
	cmd.Flags().IntVarP(&port, "port", "p", watch.DefaultPort, "Development server port")

	return cmd
}

// reloadingBuilder runs passes with a generator that is rebuilt when the
// configuration file changes. A configuration that fails to load keeps the
// previous generator.
type reloadingBuilder struct {
	mu        sync.Mutex
	env       *environment
	gen       *generator.Generator
	overrides func(*config.Config) error
}

func newReloadingBuilder(env *environment, overrides func(*config.Config) error) (*reloadingBuilder, error) {
	gen, err := env.generator(env.config)
	if err != nil {
		return nil, err
	}
	return &reloadingBuilder{env: env, gen: gen, overrides: overrides}, nil
}

func (b *reloadingBuilder) current() *generator.Generator {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.gen
}

func (b *reloadingBuilder) Run(ctx context.Context) (*generator.Result, error) {
	return b.current().Run(ctx)
}

func (b *reloadingBuilder) Invalidate() {
	b.current().Invalidate()
}

func (b *reloadingBuilder) reload() {
	cfg, err := config.Load(b.env.config.Dir, b.env.config.File)
	if err == nil {
		err = b.overrides(cfg)
	}
	var gen *generator.Generator
	if err == nil {
		gen, err = b.env.generator(cfg)
	}
	if err != nil {
		b.env.logger.Warn("configuration not reloaded", zap.Error(err))
		fmt.Fprint(b.env.stderr, ui.ConfigError(err.Error(), b.env.noColor))
		return
	}

	b.mu.Lock()
	b.gen = gen
	b.mu.Unlock()
	b.env.logger.Info("configuration reloaded", zap.String("file", cfg.File))
}
