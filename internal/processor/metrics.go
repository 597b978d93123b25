package processor

import (
	"sync"
	"sync/atomic"
	"time"
)

// ServiceMetrics tracks in-process throughput for the periodic log report.
// Prometheus carries the externally scraped view; this stays useful when
// the metrics endpoint is disabled.
type ServiceMetrics struct {
	totalProcessed  int64
	totalFailed     int64
	totalDurationNs int64
	startedNs       int64

	mu     sync.Mutex
	byType map[string]int64
}

func NewServiceMetrics() *ServiceMetrics {
	return &ServiceMetrics{
		startedNs: time.Now().UnixNano(),
		byType:    make(map[string]int64),
	}
}

func (m *ServiceMetrics) RecordSuccess(jobType string, duration time.Duration) {
	atomic.AddInt64(&m.totalProcessed, 1)
	atomic.AddInt64(&m.totalDurationNs, int64(duration))
	m.bump(jobType)
}

func (m *ServiceMetrics) RecordFailure(jobType string) {
	atomic.AddInt64(&m.totalFailed, 1)
	m.bump(jobType)
}

func (m *ServiceMetrics) bump(jobType string) {
	m.mu.Lock()
	m.byType[jobType]++
	m.mu.Unlock()
}

func (m *ServiceMetrics) CountForType(jobType string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byType[jobType]
}

func (m *ServiceMetrics) GetStats() map[string]interface{} {
	processed := atomic.LoadInt64(&m.totalProcessed)
	failed := atomic.LoadInt64(&m.totalFailed)
	durationNs := atomic.LoadInt64(&m.totalDurationNs)
	startedNs := atomic.LoadInt64(&m.startedNs)

	elapsed := time.Since(time.Unix(0, startedNs)).Seconds()

	rate := 0.0
	if elapsed > 0 {
		rate = float64(processed) / elapsed
	}

	avgDuration := time.Duration(0)
	if processed > 0 {
		avgDuration = time.Duration(durationNs / processed)
	}

	return map[string]interface{}{
		"total_processed": processed,
		"total_failed":    failed,
		"rate_per_second": rate,
		"avg_duration_ms": avgDuration.Milliseconds(),
		"uptime_seconds":  elapsed,
	}
}
