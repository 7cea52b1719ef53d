package findmymeow

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
type MetricsCollector interface {
	// RecordIngest is called after each image upload.
	// vectors is the number of detected subjects, err is nil if successful.
	RecordIngest(vectors int, duration time.Duration, err error)

	// RecordSearch is called after each search.
	// results is the number of posts returned.
	RecordSearch(topK, results int, duration time.Duration, err error)

	// RecordDelete is called after each image deletion.
	RecordDelete(duration time.Duration, err error)

	// RecordPersist is called after each snapshot upload.
	RecordPersist(bytes int64, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordIngest(int, time.Duration, error)      {}
func (NoopMetricsCollector) RecordSearch(int, int, time.Duration, error) {}
func (NoopMetricsCollector) RecordDelete(time.Duration, error)           {}
func (NoopMetricsCollector) RecordPersist(int64, time.Duration, error)   {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	IngestCount      atomic.Int64
	IngestErrors     atomic.Int64
	IngestVectors    atomic.Int64
	IngestTotalNanos atomic.Int64
	SearchCount      atomic.Int64
	SearchErrors     atomic.Int64
	SearchResults    atomic.Int64
	SearchTotalNanos atomic.Int64
	DeleteCount      atomic.Int64
	DeleteErrors     atomic.Int64
	PersistCount     atomic.Int64
	PersistErrors    atomic.Int64
	PersistBytes     atomic.Int64
}

// RecordIngest implements MetricsCollector.
func (b *BasicMetricsCollector) RecordIngest(vectors int, duration time.Duration, err error) {
	b.IngestCount.Add(1)
	b.IngestTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.IngestErrors.Add(1)
		return
	}
	b.IngestVectors.Add(int64(vectors))
}

// RecordSearch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSearch(_ int, results int, duration time.Duration, err error) {
	b.SearchCount.Add(1)
	b.SearchTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.SearchErrors.Add(1)
		return
	}
	b.SearchResults.Add(int64(results))
}

// RecordDelete implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDelete(_ time.Duration, err error) {
	b.DeleteCount.Add(1)
	if err != nil {
		b.DeleteErrors.Add(1)
	}
}

// RecordPersist implements MetricsCollector.
func (b *BasicMetricsCollector) RecordPersist(bytes int64, _ time.Duration, err error) {
	b.PersistCount.Add(1)
	if err != nil {
		b.PersistErrors.Add(1)
		return
	}
	b.PersistBytes.Add(bytes)
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		IngestCount:    b.IngestCount.Load(),
		IngestErrors:   b.IngestErrors.Load(),
		IngestVectors:  b.IngestVectors.Load(),
		IngestAvgNanos: avg(b.IngestTotalNanos.Load(), b.IngestCount.Load()),
		SearchCount:    b.SearchCount.Load(),
		SearchErrors:   b.SearchErrors.Load(),
		SearchResults:  b.SearchResults.Load(),
		SearchAvgNanos: avg(b.SearchTotalNanos.Load(), b.SearchCount.Load()),
		DeleteCount:    b.DeleteCount.Load(),
		DeleteErrors:   b.DeleteErrors.Load(),
		PersistCount:   b.PersistCount.Load(),
		PersistErrors:  b.PersistErrors.Load(),
		PersistBytes:   b.PersistBytes.Load(),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	IngestCount    int64 `json:"ingest_count"`
	IngestErrors   int64 `json:"ingest_errors"`
	IngestVectors  int64 `json:"ingest_vectors"`
	IngestAvgNanos int64 `json:"ingest_avg_nanos"`
	SearchCount    int64 `json:"search_count"`
	SearchErrors   int64 `json:"search_errors"`
	SearchResults  int64 `json:"search_results"`
	SearchAvgNanos int64 `json:"search_avg_nanos"`
	DeleteCount    int64 `json:"delete_count"`
	DeleteErrors   int64 `json:"delete_errors"`
	PersistCount   int64 `json:"persist_count"`
	PersistErrors  int64 `json:"persist_errors"`
	PersistBytes   int64 `json:"persist_bytes"`
}
