// Package app wires configuration into a running autobuy service and selects
// between one-shot and scheduled operation.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/guarzo/mtgautobuy/internal/autobuy"
	"github.com/guarzo/mtgautobuy/internal/cache"
	"github.com/guarzo/mtgautobuy/internal/config"
)

// App owns the configuration, the logger and the cleanup functions registered
// while wiring.
type App struct {
	cfg     *config.Config
	logger  *zap.Logger
	closers []func()
	now     func() time.Time
}

// New creates an App.
func New(cfg *config.Config, logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &App{
		cfg:    cfg,
		logger: logger.With(zap.String("component", "app")),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Run wires dependencies and runs in the configured mode. In daemon mode it
// blocks until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("starting", zap.String("mode", a.cfg.Mode))

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	a.closers = append(a.closers, cleanup)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}

	switch a.cfg.Mode {
	case "once":
		return a.runOnce(ctx, deps)
	case "daemon":
		return a.runDaemon(ctx, deps)
	default:
		return fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
	}
}

func (a *App) runOnce(ctx context.Context, deps *Deps) error {
	if t := a.cfg.Schedule.RunTimeout.Duration; t > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}

	date := a.now()
	results, err := deps.Service.Run(ctx, date)
	if err != nil {
		return fmt.Errorf("app: run: %w", err)
	}
	path, err := deps.Sink.Write(date, results)
	if err != nil {
		return fmt.Errorf("app: write report: %w", err)
	}
	a.logger.Info("report written", zap.String("path", path), zap.Int("cards", len(results)))

	if mc, ok := deps.Cache.(*cache.MemoryCache); ok {
		st := mc.Stats()
		a.logger.Debug("memory cache stats",
			zap.Int("items", st.TotalItems),
			zap.Int64("hits", st.Hits),
			zap.Int64("misses", st.Misses),
			zap.Int64("evictions", st.Evictions),
		)
	}
	return nil
}

func (a *App) runDaemon(ctx context.Context, deps *Deps) error {
	sched, err := autobuy.NewScheduler(ctx, a.cfg.Schedule.Cron, deps.Service, deps.Sink,
		a.cfg.Schedule.RunTimeout.Duration, a.logger)
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}
	if mc, ok := deps.Cache.(*cache.MemoryCache); ok {
		err := sched.AddJob("0 0 * * * *", func(context.Context) {
			if n := mc.Clean(); n > 0 {
				a.logger.Debug("expired cache entries removed", zap.Int("removed", n))
			}
		})
		if err != nil {
			return fmt.Errorf("app: %w", err)
		}
	}
	sched.Start()
	<-ctx.Done()
	sched.Stop()
	return ctx.Err()
}

// Close runs cleanup functions in reverse registration order. Calling it
// twice is a no-op.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
