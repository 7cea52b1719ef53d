// Package flat provides an exact, brute-force vector index.
package flat

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/findmymeow/distance"
	"github.com/hupe1980/findmymeow/index"
	"github.com/hupe1980/findmymeow/internal/queue"
	"github.com/hupe1980/findmymeow/persistence"
)

// Compile-time check to ensure Flat satisfies the index interface.
var _ index.Index = (*Flat)(nil)

// Options contains configuration options for the flat index.
type Options struct {
	// Dimension is the fixed vector dimensionality for this index.
	// It must be > 0 and is enforced for all adds and searches.
	Dimension int

	// Metric selects the distance function.
	Metric distance.Metric
}

// DefaultOptions contains the default configuration options for the flat index.
var DefaultOptions = Options{
	Dimension: 768,
	Metric:    distance.MetricL2,
}

// indexState holds the immutable state of the index for lock-free reads.
//
// keys[i] tags vectors[i*dim:(i+1)*dim]. A newer state may append to the
// same backing arrays past len, which older states never read.
type indexState struct {
	keys    []int64
	vectors []float32
	counts  map[int64]int // vectors per key
}

// Flat is an exact index over a contiguous vector array.
// It uses a copy-on-write pattern for lock-free concurrent reads.
type Flat struct {
	state        atomic.Pointer[indexState]
	writeMu      sync.Mutex // serializes writes only
	distanceFunc distance.Func
	opts         Options
}

// New creates a new instance of the flat index.
func New(optFns ...func(o *Options)) (*Flat, error) {
	opts := DefaultOptions

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Dimension <= 0 {
		return nil, fmt.Errorf("flat: invalid dimension %d", opts.Dimension)
	}

	fn, err := distance.Provider(opts.Metric)
	if err != nil {
		return nil, fmt.Errorf("flat: %w", err)
	}

	f := &Flat{
		distanceFunc: fn,
		opts:         opts,
	}
	f.state.Store(emptyState())

	return f, nil
}

func emptyState() *indexState {
	return &indexState{counts: make(map[int64]int)}
}

func (*Flat) Name() string { return "Flat" }

// Dimension returns the fixed vector dimensionality.
func (f *Flat) Dimension() int { return f.opts.Dimension }

// Metric returns the distance metric.
func (f *Flat) Metric() distance.Metric { return f.opts.Metric }

// Add tags every vector with key. All vectors are validated before any is
// inserted, so a dimension mismatch leaves the index unchanged.
func (f *Flat) Add(key int64, vectors [][]float32) error {
	if key < 0 {
		return index.ErrInvalidKey
	}
	if len(vectors) == 0 {
		return index.ErrEmptyBatch
	}
	if err := index.ValidateDimension(f.opts.Dimension, vectors); err != nil {
		return err
	}

	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	old := f.state.Load()

	next := &indexState{
		keys:    old.keys,
		vectors: old.vectors,
		counts:  maps.Clone(old.counts),
	}
	for _, v := range vectors {
		next.keys = append(next.keys, key)
		next.vectors = append(next.vectors, v...)
	}
	next.counts[key] += len(vectors)

	f.state.Store(next)

	return nil
}

// Remove deletes every vector tagged with key and returns how many were
// removed.
func (f *Flat) Remove(key int64) int {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	old := f.state.Load()

	n := old.counts[key]
	if n == 0 {
		return 0
	}

	dim := f.opts.Dimension
	remaining := len(old.keys) - n

	next := &indexState{
		keys:    make([]int64, 0, remaining),
		vectors: make([]float32, 0, remaining*dim),
		counts:  maps.Clone(old.counts),
	}
	for i, k := range old.keys {
		if k == key {
			continue
		}
		next.keys = append(next.keys, k)
		next.vectors = append(next.vectors, old.vectors[i*dim:(i+1)*dim]...)
	}
	delete(next.counts, key)

	f.state.Store(next)

	return n
}

// Search returns up to k nearest vectors to query in ascending distance.
// An empty index yields an empty result.
func (f *Flat) Search(ctx context.Context, query []float32, k int) ([]index.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, index.ErrInvalidK
	}

	dim := f.opts.Dimension
	if len(query) != dim {
		return nil, &index.ErrDimensionMismatch{Expected: dim, Actual: len(query)}
	}

	st := f.state.Load()
	if len(st.keys) == 0 {
		return []index.SearchResult{}, nil
	}

	actualK := min(k, len(st.keys))
	topCandidates := queue.NewMax(actualK)

	for i, key := range st.keys {
		if i%4096 == 0 && i > 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if key <= index.SentinelKey {
			continue
		}

		d := f.distanceFunc(query, st.vectors[i*dim:(i+1)*dim])
		topCandidates.Offer(queue.Item{Key: key, Distance: d}, actualK)
	}

	items := topCandidates.DrainAscending()
	results := make([]index.SearchResult, len(items))
	for i, it := range items {
		results[i] = index.SearchResult{Key: it.Key, Distance: it.Distance}
	}

	return results, nil
}

// Contains reports whether any vector is tagged with key.
func (f *Flat) Contains(key int64) bool {
	return f.state.Load().counts[key] > 0
}

// Len returns the number of stored vectors.
func (f *Flat) Len() int {
	return len(f.state.Load().keys)
}

// KeyCount returns the number of distinct keys.
func (f *Flat) KeyCount() int {
	return len(f.state.Load().counts)
}

// Reset drops every vector.
func (f *Flat) Reset() {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	f.state.Store(emptyState())
}

// Snapshot returns a consistent copy of the current state for persistence.
func (f *Flat) Snapshot() *persistence.Snapshot {
	st := f.state.Load()

	return &persistence.Snapshot{
		Dimension: f.opts.Dimension,
		Metric:    f.opts.Metric,
		Keys:      st.keys[:len(st.keys):len(st.keys)],
		Vectors:   st.vectors[:len(st.vectors):len(st.vectors)],
	}
}

// ErrSnapshotMismatch is returned by Restore when the snapshot was written
// with a different dimension or metric.
var ErrSnapshotMismatch = errors.New("flat: snapshot does not match index options")

// Restore replaces the whole index with the contents of snap.
func (f *Flat) Restore(snap *persistence.Snapshot) error {
	if snap.Dimension != f.opts.Dimension {
		return fmt.Errorf("%w: dimension %d, index has %d", ErrSnapshotMismatch, snap.Dimension, f.opts.Dimension)
	}
	if snap.Metric != f.opts.Metric {
		return fmt.Errorf("%w: metric %s, index has %s", ErrSnapshotMismatch, snap.Metric, f.opts.Metric)
	}
	if len(snap.Vectors) != len(snap.Keys)*snap.Dimension {
		return fmt.Errorf("%w: %d keys but %d components", ErrSnapshotMismatch, len(snap.Keys), len(snap.Vectors))
	}

	next := &indexState{
		keys:    snap.Keys[:len(snap.Keys):len(snap.Keys)],
		vectors: snap.Vectors[:len(snap.Vectors):len(snap.Vectors)],
		counts:  make(map[int64]int),
	}
	for _, k := range next.keys {
		next.counts[k]++
	}

	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	f.state.Store(next)

	return nil
}
