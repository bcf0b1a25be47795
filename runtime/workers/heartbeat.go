package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"cinelive/observability"

	"github.com/shirou/gopsutil/process"
)

// HeartbeatWorker samples the server's own process metrics (CPU, RSS)
// on a fixed interval and merges them into the monitoring snapshot read
// by the debug server.
type HeartbeatWorker struct {
	log      *slog.Logger
	stats    *observability.MonitoringManager
	interval time.Duration
}

func NewHeartbeatWorker(log *slog.Logger, stats *observability.MonitoringManager,
	interval time.Duration) *HeartbeatWorker {
	return &HeartbeatWorker{log: log, stats: stats, interval: interval}
}

func (w *HeartbeatWorker) Run(ctx context.Context) error {
	w.log.Info("Starting heartbeat worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			rss, cpu, err := selfStats(p)
			if err != nil {
				w.log.Error("Failed to collect self stats", "err", err)
				continue
			}
			w.stats.SetProcessStats(cpu, rss)

			snap := w.stats.Snapshot()
			w.log.Debug("Heartbeat",
				"connections", snap.Connections,
				"delivered", snap.Delivered,
				"dropped", snap.Dropped,
				"delivery_rate", snap.DeliveryRate,
				"cpu_percent", cpu,
				"rss_mb", rss/1024/1024)
		}
	}
}

// selfStats retrieves memory and CPU usage for the given process.
func selfStats(p *process.Process) (uint64, float64, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, err
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, err
	}
	return memInfo.RSS, cpuPercent, nil
}
