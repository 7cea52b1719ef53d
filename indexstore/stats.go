package indexstore

import "time"

// Stats describes the index and its last snapshot.
type Stats struct {
	Vectors       int    `json:"vectors"`
	Keys          int    `json:"keys"`
	Dimension     int    `json:"dimension"`
	Metric        string `json:"metric"`
	MemoryBytes   int64  `json:"memory_bytes"`
	SnapshotKey   string `json:"snapshot_key"`
	SnapshotBytes int64  `json:"snapshot_bytes"`
	Compression   string `json:"compression"`
	Persists      int64  `json:"persists"`
	// Unpublished is true while the last persist failed and the snapshot
	// lags the in-memory index.
	Unpublished   bool      `json:"unpublished"`
	LastPersisted time.Time `json:"last_persisted,omitzero"`
}

// Stats returns a point-in-time view of the index.
func (s *Store) Stats() Stats {
	fs := s.idx.Stats()

	st := Stats{
		Vectors:       fs.Vectors,
		Keys:          fs.Keys,
		Dimension:     fs.Dimension,
		Metric:        fs.Metric.String(),
		MemoryBytes:   fs.Bytes,
		SnapshotKey:   s.opts.SnapshotKey,
		SnapshotBytes: s.snapshotSize.Load(),
		Compression:   s.opts.Compression.String(),
		Persists:      s.persists.Load(),
		Unpublished:   s.dirty.Load(),
	}
	if ns := s.lastPersist.Load(); ns > 0 {
		st.LastPersisted = time.Unix(0, ns).UTC()
	}
	return st
}
