package indexstore

import (
	"log/slog"
	"time"

	"github.com/hupe1980/findmymeow/distance"
	"github.com/hupe1980/findmymeow/persistence"
	"github.com/hupe1980/findmymeow/resource"
)

// DefaultSnapshotKey is the blob key of the snapshot.
const DefaultSnapshotKey = "faiss_indexes/cat_index.snapshot"

// PersistInfo describes one snapshot upload.
type PersistInfo struct {
	Key      string
	Vectors  int
	Bytes    int64
	Duration time.Duration
	Err      error
}

// Options configures a Store.
type Options struct {
	// Dimension of every vector. Defaults to 768.
	Dimension int

	// Metric selects the distance function. Defaults to squared L2.
	Metric distance.Metric

	// SnapshotKey is the blob key the index is persisted under.
	SnapshotKey string

	// Compression of the snapshot payload.
	Compression persistence.Compression

	// SearchParallelism bounds concurrent per-query searches.
	// Defaults to 4.
	SearchParallelism int

	// Resources throttles snapshot IO. Nil means unlimited.
	Resources *resource.Controller

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// OnPersist is called after every snapshot upload attempt.
	OnPersist func(PersistInfo)
}

// DefaultOptions are applied before the option functions.
var DefaultOptions = Options{
	Dimension:         768,
	Metric:            distance.MetricL2,
	SnapshotKey:       DefaultSnapshotKey,
	Compression:       persistence.CompressionNone,
	SearchParallelism: 4,
}
