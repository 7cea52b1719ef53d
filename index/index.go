package index

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/findmymeow/distance"
)

// SentinelKey marks an empty result slot. Keys at or below it are never
// returned from a search.
const SentinelKey int64 = -1

var (
	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("k must be positive")

	// ErrInvalidKey is returned for negative index keys.
	ErrInvalidKey = errors.New("index key must be non-negative")

	// ErrEmptyBatch is returned when Add is called without vectors.
	ErrEmptyBatch = errors.New("no vectors to add")
)

// ErrDimensionMismatch is a named error type for dimension mismatch
type ErrDimensionMismatch struct {
	Expected int // Expected dimensions
	Actual   int // Actual dimensions
}

// Error returns the error message for dimension mismatch
func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// SearchResult is one nearest neighbor.
type SearchResult struct {
	// Key is the index key the matched vector is tagged with.
	Key int64

	// Distance between the query and the matched vector. Lower is closer.
	Distance float32
}

// Index is an exact, key-addressable vector index. Several vectors may share
// one key.
type Index interface {
	// Add tags every vector with key. Either all vectors are added or none.
	Add(key int64, vectors [][]float32) error

	// Remove deletes every vector tagged with key and reports how many were
	// removed. Absent keys are not an error.
	Remove(key int64) int

	// Search returns up to k nearest vectors in ascending distance.
	Search(ctx context.Context, query []float32, k int) ([]SearchResult, error)

	// Contains reports whether any vector is tagged with key.
	Contains(key int64) bool

	// Len returns the number of stored vectors.
	Len() int

	// Dimension returns the fixed vector dimensionality.
	Dimension() int

	// Metric returns the distance metric.
	Metric() distance.Metric
}

// ValidateDimension checks every vector against dim.
func ValidateDimension(dim int, vectors [][]float32) error {
	for _, v := range vectors {
		if len(v) != dim {
			return &ErrDimensionMismatch{Expected: dim, Actual: len(v)}
		}
	}

	return nil
}
