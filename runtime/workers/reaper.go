package workers

import (
	"context"
	"log/slog"
	"time"

	"cinelive/contract"
	"cinelive/domain"
)

// Teardown runs the disconnect cascade for one connection.
type Teardown func(ctx context.Context, connID domain.ConnectionID)

// IdleReaperWorker tears down connections whose transport went silent
// past the idle timeout. Explicit disconnects race with the reaper by
// design; teardown is idempotent.
type IdleReaperWorker struct {
	log         *slog.Logger
	registry    contract.IRegistry
	idleTimeout time.Duration
	interval    time.Duration
	teardown    Teardown
}

func NewIdleReaperWorker(log *slog.Logger, registry contract.IRegistry,
	idleTimeout, interval time.Duration, teardown Teardown) *IdleReaperWorker {
	return &IdleReaperWorker{
		log:         log,
		registry:    registry,
		idleTimeout: idleTimeout,
		interval:    interval,
		teardown:    teardown,
	}
}

func (w *IdleReaperWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping idle reaper")
			return nil
		case <-ticker.C:
			idle := w.registry.IdleConnections(w.idleTimeout)
			for _, connID := range idle {
				w.log.Info("Reaping idle connection", "connection", connID)
				w.teardown(ctx, connID)
			}
		}
	}
}
