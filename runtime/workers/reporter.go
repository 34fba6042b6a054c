package workers

import (
	"context"
	"hive-chat/contract"
	"hive-chat/observability"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
)

// PresenceReporterWorker periodically publishes how many users hold a live binding,
// together with the process footprint.
type PresenceReporterWorker struct {
	log      *slog.Logger
	registry contract.IPresenceRegistry
	interval time.Duration
}

func NewPresenceReporterWorker(log *slog.Logger, registry contract.IPresenceRegistry, interval time.Duration) *PresenceReporterWorker {
	return &PresenceReporterWorker{log: log, registry: registry, interval: interval}
}

func (w *PresenceReporterWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		w.log.Warn("Process stats unavailable", "error", err)
		p = nil
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.report(p)
		}
	}
}

func (w *PresenceReporterWorker) report(p *process.Process) {
	bound := w.registry.Count()
	observability.PresenceBoundUsers.Set(float64(bound))
	if p == nil {
		w.log.Debug("Presence", "bound_users", bound)
		return
	}
	rss, cpu, err := selfStats(p)
	if err != nil {
		w.log.Debug("Presence", "bound_users", bound, "error", err)
		return
	}
	w.log.Debug("Presence", "bound_users", bound, "rss_mb", rss/1024/1024, "cpu_percent", cpu)
}

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
