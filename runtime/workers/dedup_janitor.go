package workers

import (
	"context"
	"log/slog"
	"time"
)

// Pruner drops expired dedup claims.
type Pruner interface {
	Prune() int
	Len() int
}

// DedupJanitorWorker periodically evicts expired dedup claims so the
// index stays bounded by the suppression window, not by total traffic.
type DedupJanitorWorker struct {
	log      *slog.Logger
	pruner   Pruner
	interval time.Duration
}

func NewDedupJanitorWorker(log *slog.Logger, pruner Pruner, interval time.Duration) *DedupJanitorWorker {
	return &DedupJanitorWorker{log: log, pruner: pruner, interval: interval}
}

func (w *DedupJanitorWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping dedup janitor")
			return nil
		case <-ticker.C:
			if removed := w.pruner.Prune(); removed > 0 {
				w.log.Debug("Dedup claims pruned",
					"removed", removed, "remaining", w.pruner.Len())
			}
		}
	}
}
