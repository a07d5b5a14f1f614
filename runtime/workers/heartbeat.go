package workers

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/process"
)

// ConnectionCounter reports how many live connections are registered.
type ConnectionCounter interface {
	Count() int
}

// Snapshot is one heartbeat measure of the relay process.
type Snapshot struct {
	PID         int32
	Status      string
	CpuPercent  float64
	RamBytes    uint64
	Goroutines  int
	Connections int
}

// HeartbeatWorker logs the health of the relay at a fixed interval.
type HeartbeatWorker struct {
	log         *slog.Logger
	connections ConnectionCounter
	interval    time.Duration
	proc        *process.Process
}

func NewHeartbeatWorker(log *slog.Logger, connections ConnectionCounter, interval time.Duration) (*HeartbeatWorker, error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	return &HeartbeatWorker{log: log, connections: connections, interval: interval, proc: p}, nil
}

func (w *HeartbeatWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping worker")
			return ctx.Err()
		case <-ticker.C:
			snapshot, err := w.Snapshot()
			if err != nil {
				w.log.Error("Failed to collect self stats", "error", err)
				continue
			}
			w.log.Info("Relay heartbeat",
				"pid", snapshot.PID,
				"status", snapshot.Status,
				"cpu_percent", snapshot.CpuPercent,
				"ram_bytes", snapshot.RamBytes,
				"goroutines", snapshot.Goroutines,
				"connections", snapshot.Connections,
			)
		}
	}
}

// Snapshot retrieves memory, CPU and OS status of the relay along with its connection count.
func (w *HeartbeatWorker) Snapshot() (Snapshot, error) {
	memInfo, err := w.proc.MemoryInfo()
	if err != nil {
		return Snapshot{}, err
	}
	cpuPercent, err := w.proc.CPUPercent()
	if err != nil {
		return Snapshot{}, err
	}
	status, err := w.proc.Status()
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		PID:         w.proc.Pid,
		Status:      status,
		CpuPercent:  cpuPercent,
		RamBytes:    memInfo.RSS,
		Goroutines:  runtime.NumGoroutine(),
		Connections: w.connections.Count(),
	}, nil
}
