package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
)

// PresenceStats reports the live shape of the service for the heartbeat
// line. The presence registry satisfies it.
type PresenceStats interface {
	Size() (rooms int, conns int)
}

type HeartbeatWorker struct {
	log      *slog.Logger
	presence PresenceStats
	interval time.Duration
}

func NewHeartbeatWorker(log *slog.Logger, presence PresenceStats, interval time.Duration) *HeartbeatWorker {
	return &HeartbeatWorker{log: log, presence: presence, interval: interval}
}

// Run emits a periodic health line with process metrics (CPU, RAM, Status)
// and the current presence counts.
func (w *HeartbeatWorker) Run(ctx context.Context) error {
	w.log.Info("Starting heartbeat worker", "interval", w.interval)
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
			rss, cpu, status, err := getSelfStats(p)
			if err != nil {
				w.log.Error("Failed to collect self stats", "err", err)
				continue
			}

			rooms, conns := w.presence.Size()
			w.log.Info("Heartbeat",
				"pid", os.Getpid(),
				"pid_status", status,
				"cpu_percent", cpu,
				"ram_bytes", rss,
				"active_rooms", rooms,
				"open_connections", conns)
		}
	}
}

// getSelfStats retrieves technical metrics (Memory, CPU, and OS Status) for the given process.
func getSelfStats(p *process.Process) (uint64, float64, string, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, "", err
	}

	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, "", err
	}

	status, err := p.Status()
	if err != nil {
		return 0, 0, "", err
	}
	return memInfo.RSS, cpuPercent, status, nil
}
