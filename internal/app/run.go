package app

import (
	"context"
	"fmt"

	"github.com/vk/notegrid/internal/ctxlog"
	"github.com/vk/notegrid/internal/node"
	"github.com/vk/notegrid/internal/scheduler"
)

// Run executes one scheduling round based on the provided configuration.
func (a *App) Run(ctx context.Context, cfg *Config) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	if cfg.MetricsPort > 0 {
		a.startMetricsServer(cfg.MetricsPort)
	}

	triggers := make([]node.ID, 0, len(cfg.Triggers))
	for _, id := range cfg.Triggers {
		triggers = append(triggers, node.ID(id))
	}

	if a.doc.Len() == 0 {
		a.logger.Warn("No nodes found in document, execution not required.")
		return nil
	}

	sched := scheduler.New(a.doc, a.pool, scheduler.Options{
		Workers: cfg.WorkerCount,
		Metrics: a.metrics,
	})

	a.logger.Info("🚀 Starting execution round...", "triggers", len(triggers))
	summary, err := sched.Run(ctx, triggers)
	if err != nil {
		return fmt.Errorf("execution failed: %w", err)
	}
	a.logger.Info("🏁 Round finished.",
		"executed", summary.Executed,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"skipped", summary.Skipped)

	if summary.Failed > 0 {
		return fmt.Errorf("%d node(s) failed", summary.Failed)
	}

	a.logger.Debug("App.Run method finished.")
	return nil
}
