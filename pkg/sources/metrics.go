package sources

import (
	"sync/atomic"
	"time"
)

// Metrics accumulates per-source request counters. All methods are safe for
// concurrent use; the zero value is ready to use. Variants embed one
// Metrics and record into it from the request path.
type Metrics struct {
	successfulRequests atomic.Int64
	failedRequests     atomic.Int64
	cacheHits          atomic.Int64
	cacheMisses        atomic.Int64
	recordsProcessed   atomic.Int64

	latencyTotal   atomic.Int64 // nanoseconds
	latencySamples atomic.Int64
}

// RecordSuccess counts a successful request and its latency.
func (m *Metrics) RecordSuccess(latency time.Duration) {
	m.successfulRequests.Add(1)
	m.latencyTotal.Add(int64(latency))
	m.latencySamples.Add(1)
}

// RecordFailure counts a failed request and its latency.
func (m *Metrics) RecordFailure(latency time.Duration) {
	m.failedRequests.Add(1)
	m.latencyTotal.Add(int64(latency))
	m.latencySamples.Add(1)
}

// RecordCacheHit counts a read served from the source's cache.
func (m *Metrics) RecordCacheHit() { m.cacheHits.Add(1) }

// RecordCacheMiss counts a read that fell through the source's cache.
func (m *Metrics) RecordCacheMiss() { m.cacheMisses.Add(1) }

// RecordRecords counts records returned by a query.
func (m *Metrics) RecordRecords(n int) { m.recordsProcessed.Add(int64(n)) }

// Snapshot returns an immutable copy of the counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	samples := m.latencySamples.Load()
	var avg time.Duration
	if samples > 0 {
		avg = time.Duration(m.latencyTotal.Load() / samples)
	}
	return MetricsSnapshot{
		SuccessfulRequests: m.successfulRequests.Load(),
		FailedRequests:     m.failedRequests.Load(),
		CacheHits:          m.cacheHits.Load(),
		CacheMisses:        m.cacheMisses.Load(),
		RecordsProcessed:   m.recordsProcessed.Load(),
		AverageLatency:     avg,
	}
}

// MetricsSnapshot is an immutable view of a source's request counters.
type MetricsSnapshot struct {
	SuccessfulRequests int64
	FailedRequests     int64
	CacheHits          int64
	CacheMisses        int64
	RecordsProcessed   int64
	AverageLatency     time.Duration
}
