package metrics

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"

	"pumpsubscriber/internal/logging"
)

// SystemSampler periodically samples host CPU usage via gopsutil and Go
// runtime heap stats, feeding both the Prometheus gauges and a
// system_metrics log record. Adapted from the teacher's
// internal/metrics/system.go SystemMetrics.updateCPUMetrics (same
// cpu.Percent call and exponential-moving-average smoothing).
type SystemSampler struct {
	metrics *Metrics
	printer *logging.Printer

	mu         sync.Mutex
	cpuPercent float64
}

// NewSystemSampler builds a sampler that reports through m and p.
func NewSystemSampler(m *Metrics, p *logging.Printer) *SystemSampler {
	return &SystemSampler{metrics: m, printer: p}
}

// Run samples on interval until ctx is cancelled.
func (s *SystemSampler) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sample()
		}
	}
}

func (s *SystemSampler) sample() {
	percents, err := cpu.Percent(0, false)
	if err == nil && len(percents) > 0 {
		s.mu.Lock()
		current := percents[0]
		if s.cpuPercent == 0 {
			s.cpuPercent = current
		} else {
			const alpha = 0.3
			s.cpuPercent = alpha*current + (1-alpha)*s.cpuPercent
		}
		cpuPercent := s.cpuPercent
		s.mu.Unlock()
		s.metrics.SetCPUPercent(cpuPercent)
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	s.metrics.SetMemoryAllocBytes(mem.HeapAlloc)

	s.mu.Lock()
	cpuPercent := s.cpuPercent
	s.mu.Unlock()

	s.printer.Log(
		logging.F("event", "system_metrics"),
		logging.F("cpu_percent", cpuPercent),
		logging.F("heap_alloc_mb", float64(mem.HeapAlloc)/1024/1024),
		logging.F("goroutines", runtime.NumGoroutine()),
	)
}
