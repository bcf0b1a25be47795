// Package observability aggregates live delivery metrics for the debug
// server and the heartbeat worker.
package observability

import (
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// MonitoringStats is the snapshot exposed to the debug UI.
type MonitoringStats struct {
	Delivered     uint64  `json:"delivered"`
	Dropped       uint64  `json:"dropped"`
	Suppressed    uint64  `json:"suppressed"`
	Connections   int     `json:"connections"`
	DeliveryRate  float64 `json:"delivery_rate"` // events/s since last snapshot
	AllocMemMb    uint64  `json:"alloc_mem_mb"`
	NumGC         uint32  `json:"num_gc"`
	CPUPercent    float64 `json:"cpu_percent"`
	RSSBytes      uint64  `json:"rss_bytes"`
	SnapshotTaken string  `json:"snapshot_taken"`
}

// MonitoringManager owns atomic counters updated on the hot path and a
// periodically refreshed snapshot read by the debug server.
type MonitoringManager struct {
	log *slog.Logger

	mu          sync.RWMutex
	latestStats MonitoringStats

	delivered  uint64
	dropped    uint64
	suppressed uint64
	rateWindow uint64
	lastCheck  time.Time

	connectionGauge atomic.Int64
}

func NewMonitoringManager(log *slog.Logger) *MonitoringManager {
	return &MonitoringManager{log: log, lastCheck: time.Now()}
}

func (mm *MonitoringManager) AddDelivered(n uint64) {
	atomic.AddUint64(&mm.delivered, n)
	atomic.AddUint64(&mm.rateWindow, n)
}

func (mm *MonitoringManager) IncrDropped() {
	atomic.AddUint64(&mm.dropped, 1)
}

func (mm *MonitoringManager) IncrSuppressed() {
	atomic.AddUint64(&mm.suppressed, 1)
}

func (mm *MonitoringManager) SetConnections(n int) {
	mm.connectionGauge.Store(int64(n))
}

// SetProcessStats merges externally sampled process metrics (heartbeat
// worker) into the snapshot.
func (mm *MonitoringManager) SetProcessStats(cpuPercent float64, rssBytes uint64) {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	mm.latestStats.CPUPercent = cpuPercent
	mm.latestStats.RSSBytes = rssBytes
}

// Snapshot refreshes and returns the latest stats. Called by the
// heartbeat worker on its tick and by the debug server on demand.
func (mm *MonitoringManager) Snapshot() MonitoringStats {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(mm.lastCheck).Seconds()
	if elapsed > 0 {
		windowed := atomic.SwapUint64(&mm.rateWindow, 0)
		mm.latestStats.DeliveryRate = float64(windowed) / elapsed
	}
	mm.lastCheck = now

	mm.latestStats.Delivered = atomic.LoadUint64(&mm.delivered)
	mm.latestStats.Dropped = atomic.LoadUint64(&mm.dropped)
	mm.latestStats.Suppressed = atomic.LoadUint64(&mm.suppressed)
	mm.latestStats.Connections = int(mm.connectionGauge.Load())

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	mm.latestStats.AllocMemMb = m.Alloc / 1024 / 1024
	mm.latestStats.NumGC = m.NumGC
	mm.latestStats.SnapshotTaken = now.Format("15:04:05")

	return mm.latestStats
}
