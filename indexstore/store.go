package indexstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hupe1980/findmymeow/blobstore"
	"github.com/hupe1980/findmymeow/index"
	"github.com/hupe1980/findmymeow/index/flat"
	"github.com/hupe1980/findmymeow/persistence"
	"golang.org/x/sync/errgroup"
)

// ErrPersistFailure is returned when the snapshot could not be published.
// The in-memory change that preceded it is kept.
var ErrPersistFailure = errors.New("indexstore: persist failed")

// Store is the persistent similarity index.
type Store struct {
	blobs  blobstore.BlobStore
	idx    *flat.Flat
	opts   Options
	logger *slog.Logger

	// writeMu serializes Add, Remove, Reset, Load and Persist.
	writeMu sync.Mutex
	// dirty is set while the published snapshot lags the in-memory index.
	// Written under writeMu.
	dirty atomic.Bool

	persists     atomic.Int64
	lastPersist  atomic.Int64 // unix nanos
	snapshotSize atomic.Int64
}

// New creates an empty store. Call Load to restore the persisted snapshot.
func New(blobs blobstore.BlobStore, optFns ...func(o *Options)) (*Store, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.SnapshotKey == "" {
		opts.SnapshotKey = DefaultSnapshotKey
	}
	if opts.SearchParallelism <= 0 {
		opts.SearchParallelism = DefaultOptions.SearchParallelism
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	idx, err := flat.New(func(o *flat.Options) {
		o.Dimension = opts.Dimension
		o.Metric = opts.Metric
	})
	if err != nil {
		return nil, fmt.Errorf("indexstore: %w", err)
	}

	return &Store{
		blobs:  blobs,
		idx:    idx,
		opts:   opts,
		logger: opts.Logger.With("component", "indexstore"),
	}, nil
}

// SetPersistHook replaces Options.OnPersist.
func (s *Store) SetPersistHook(fn func(PersistInfo)) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.opts.OnPersist = fn
}

// Dimension returns the configured vector dimension.
func (s *Store) Dimension() int { return s.opts.Dimension }

// SnapshotKey returns the blob key of the snapshot.
func (s *Store) SnapshotKey() string { return s.opts.SnapshotKey }

// Load replaces the in-memory index with the persisted snapshot. A missing
// snapshot yields an empty index. A snapshot that does not decode, or that was
// written with another dimension or metric, fails with an error matching
// persistence.ErrCorruptSnapshot and leaves the current index untouched.
func (s *Store) Load(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	return s.loadLocked(ctx)
}

func (s *Store) loadLocked(ctx context.Context) error {
	start := time.Now()

	b, err := s.blobs.Open(ctx, s.opts.SnapshotKey)
	if errors.Is(err, blobstore.ErrNotFound) {
		s.idx.Reset()
		s.dirty.Store(false)
		s.logger.Info("no snapshot found, starting with empty index", "key", s.opts.SnapshotKey)
		return nil
	}
	if err != nil {
		return fmt.Errorf("indexstore: open snapshot: %w", err)
	}
	defer func() { _ = b.Close() }()

	snap, err := persistence.Decode(s.opts.Resources.ThrottleReader(ctx, b), s.opts.Dimension)
	if err != nil {
		return fmt.Errorf("indexstore: load %s: %w", s.opts.SnapshotKey, err)
	}

	if err := s.idx.Restore(snap); err != nil {
		if errors.Is(err, flat.ErrSnapshotMismatch) {
			return fmt.Errorf("indexstore: load %s: %w: %w", s.opts.SnapshotKey, persistence.ErrCorruptSnapshot, err)
		}
		return fmt.Errorf("indexstore: restore: %w", err)
	}

	s.dirty.Store(false)
	s.snapshotSize.Store(b.Size())
	s.logger.Info("snapshot loaded",
		"key", s.opts.SnapshotKey,
		"vectors", snap.Len(),
		"keys", s.idx.KeyCount(),
		"bytes", b.Size(),
		"duration", time.Since(start),
	)
	return nil
}

// Add tags vectors with key and persists. A dimension mismatch in any vector
// inserts nothing and returns *index.ErrDimensionMismatch. If the snapshot
// upload fails the vectors stay in memory and ErrPersistFailure is returned.
func (s *Store) Add(ctx context.Context, key int64, vectors [][]float32) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.idx.Add(key, vectors); err != nil {
		return err
	}

	return s.persistLocked(ctx)
}

// Remove deletes every vector tagged with key, persists, and returns how many
// were removed. Removing an absent key, or from an empty index, is a logged
// no-op. If an earlier persist failed, the no-op still publishes the current
// state so a retried delete cannot leave the key in the snapshot.
func (s *Store) Remove(ctx context.Context, key int64) (int, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.idx.Len() == 0 {
		s.logger.Warn("remove on empty index ignored", "index_key", key)
		return 0, s.flushDirtyLocked(ctx)
	}

	n := s.idx.Remove(key)
	if n == 0 {
		s.logger.Warn("remove of absent key ignored", "index_key", key)
		return 0, s.flushDirtyLocked(ctx)
	}

	if err := s.persistLocked(ctx); err != nil {
		return n, err
	}
	return n, nil
}

// Search returns up to k nearest neighbors per query in ascending distance.
// Queries run in parallel. Entries with negative keys are never returned.
func (s *Store) Search(ctx context.Context, queries [][]float32, k int) ([][]index.SearchResult, error) {
	if k <= 0 {
		return nil, index.ErrInvalidK
	}
	if err := index.ValidateDimension(s.opts.Dimension, queries); err != nil {
		return nil, err
	}

	results := make([][]index.SearchResult, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.SearchParallelism)

	for i, q := range queries {
		g.Go(func() error {
			res, err := s.idx.Search(gctx, q, k)
			if err != nil {
				return err
			}

			out := res[:0]
			for _, r := range res {
				if r.Key >= 0 {
					out = append(out, r)
				}
			}
			results[i] = out
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}

// Contains reports whether any vector is tagged with key.
func (s *Store) Contains(key int64) bool {
	return s.idx.Contains(key)
}

// Len returns the number of stored vectors.
func (s *Store) Len() int {
	return s.idx.Len()
}

// Persist publishes the current state.
func (s *Store) Persist(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	return s.persistLocked(ctx)
}

// Reset replaces the index with an empty one, persists it, and reloads it
// from storage.
func (s *Store) Reset(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.idx.Reset()
	if err := s.persistLocked(ctx); err != nil {
		return err
	}

	s.logger.Info("index reset", "key", s.opts.SnapshotKey)
	return s.loadLocked(ctx)
}

func (s *Store) flushDirtyLocked(ctx context.Context) error {
	if !s.dirty.Load() {
		return nil
	}
	s.logger.Info("publishing snapshot left behind by a failed persist", "key", s.opts.SnapshotKey)
	return s.persistLocked(ctx)
}

// persistLocked encodes the current state to a temporary blob and renames it
// over the snapshot key. Caller must hold s.writeMu.
func (s *Store) persistLocked(ctx context.Context) error {
	start := time.Now()
	snap := s.idx.Snapshot()

	n, err := s.upload(ctx, snap)

	info := PersistInfo{
		Key:      s.opts.SnapshotKey,
		Vectors:  snap.Len(),
		Bytes:    n,
		Duration: time.Since(start),
		Err:      err,
	}
	if s.opts.OnPersist != nil {
		s.opts.OnPersist(info)
	}

	if err != nil {
		s.dirty.Store(true)
		s.logger.Error("snapshot persist failed", "key", info.Key, "vectors", info.Vectors, "error", err)
		return fmt.Errorf("%w: %w", ErrPersistFailure, err)
	}

	s.dirty.Store(false)
	s.persists.Add(1)
	s.lastPersist.Store(time.Now().UnixNano())
	s.snapshotSize.Store(n)
	s.logger.Debug("snapshot persisted", "key", info.Key, "vectors", info.Vectors, "bytes", n, "duration", info.Duration)

	return nil
}

func (s *Store) upload(ctx context.Context, snap *persistence.Snapshot) (int64, error) {
	tmp := s.opts.SnapshotKey + ".tmp-" + uuid.NewString()

	w, err := s.blobs.Create(ctx, tmp)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", tmp, err)
	}

	cw := &countingWriter{w: w}
	if err := persistence.Encode(s.opts.Resources.ThrottleWriter(ctx, cw), snap, s.opts.Compression); err != nil {
		_ = w.Abort()
		return 0, fmt.Errorf("encode: %w", err)
	}

	if err := w.Close(); err != nil {
		_ = s.blobs.Delete(context.WithoutCancel(ctx), tmp)
		return 0, fmt.Errorf("close %s: %w", tmp, err)
	}

	if err := s.blobs.Rename(ctx, tmp, s.opts.SnapshotKey); err != nil {
		_ = s.blobs.Delete(context.WithoutCancel(ctx), tmp)
		return 0, fmt.Errorf("publish %s: %w", s.opts.SnapshotKey, err)
	}

	return cw.n, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
