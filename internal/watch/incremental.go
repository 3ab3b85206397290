package watch

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/apinni/apinni/internal/generator"
)

// Builder runs generation passes.
type Builder interface {
	Run(ctx context.Context) (*generator.Result, error)
	Invalidate()
}

// Runner runs one pass at a time. Changes reported while a pass runs are
// coalesced into a single follow-up pass.
type Runner struct {
	builder  Builder
	reload   *ReloadServer
	onResult func(*generator.Result, error)
	logger   *zap.Logger

	mu      sync.Mutex
	running bool
	pending map[string]struct{}
	idle    *sync.Cond
}

// NewRunner creates a runner. reload and onResult may be nil.
func NewRunner(builder Builder, reload *ReloadServer, onResult func(*generator.Result, error), logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Runner{
		builder:  builder,
		reload:   reload,
		onResult: onResult,
		logger:   logger,
		pending:  make(map[string]struct{}),
	}
	r.idle = sync.NewCond(&r.mu)
	return r
}

// Trigger schedules a pass for the changed files and returns immediately.
func (r *Runner) Trigger(ctx context.Context, files []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		for _, f := range files {
			r.pending[f] = struct{}{}
		}
		r.logger.Debug("pass queued", zap.Int("files", len(files)))
		return
	}
	r.running = true
	go r.loop(ctx, files)
}

// RunOnce runs a pass synchronously.
func (r *Runner) RunOnce(ctx context.Context, files []string) (*generator.Result, error) {
	r.mu.Lock()
	for r.running {
		r.idle.Wait()
	}
	r.running = true
	r.mu.Unlock()

	res, err := r.pass(ctx, files)

	r.mu.Lock()
	r.finish()
	r.mu.Unlock()
	return res, err
}

// Wait blocks until no pass is running or queued.
func (r *Runner) Wait() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for r.running {
		r.idle.Wait()
	}
}

// finish marks the runner idle. r.mu must be held.
func (r *Runner) finish() {
	r.running = false
	r.idle.Broadcast()
}

func (r *Runner) loop(ctx context.Context, files []string) {
	for {
		r.pass(ctx, files)

		r.mu.Lock()
		if len(r.pending) == 0 || ctx.Err() != nil {
			r.finish()
			r.mu.Unlock()
			return
		}
		files = make([]string, 0, len(r.pending))
		for f := range r.pending {
			files = append(files, f)
		}
		sort.Strings(files)
		r.pending = make(map[string]struct{})
		r.mu.Unlock()
	}
}

func (r *Runner) pass(ctx context.Context, files []string) (*generator.Result, error) {
	r.builder.Invalidate()
	if r.reload != nil {
		r.reload.NotifyBuilding(files)
	}

	res, err := r.builder.Run(ctx)
	switch {
	case err != nil:
		r.logger.Error("pass failed", zap.Error(err))
		if r.reload != nil {
			r.reload.NotifyError(err)
		}
	default:
		domains := make([]string, len(res.Domains))
		for i, d := range res.Domains {
			domains[i] = d.Domain
		}
		r.logger.Info("pass succeeded",
			zap.String("pass", res.PassID.String()),
			zap.Strings("domains", domains),
			zap.Int("written", len(res.Written)),
			zap.Duration("elapsed", res.Elapsed))
		if r.reload != nil {
			r.reload.NotifySuccess(res.PassID.String(), domains, res.Elapsed)
		}
	}
	if r.onResult != nil {
		r.onResult(res, err)
	}
	return res, err
}
