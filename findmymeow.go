package findmymeow

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/findmymeow/blobstore"
	"github.com/hupe1980/findmymeow/embedding"
	"github.com/hupe1980/findmymeow/idalloc"
	"github.com/hupe1980/findmymeow/indexstore"
	"github.com/hupe1980/findmymeow/metadata"
)

// Dependencies are the collaborators of a Service. All are required.
type Dependencies struct {
	Index    *indexstore.Store
	Blobs    blobstore.BlobStore
	Metadata metadata.Store
	IDs      idalloc.Allocator
	Embedder embedding.Provider
}

func (d Dependencies) validate() error {
	var missing []error
	if d.Index == nil {
		missing = append(missing, errors.New("index store is required"))
	}
	if d.Blobs == nil {
		missing = append(missing, errors.New("blob store is required"))
	}
	if d.Metadata == nil {
		missing = append(missing, errors.New("metadata store is required"))
	}
	if d.IDs == nil {
		missing = append(missing, errors.New("id allocator is required"))
	}
	if d.Embedder == nil {
		missing = append(missing, errors.New("embedding provider is required"))
	}
	return errors.Join(missing...)
}

// Service is the cat similarity search service.
type Service struct {
	idx      *indexstore.Store
	blobs    blobstore.BlobStore
	meta     metadata.Store
	ids      idalloc.Allocator
	embedder embedding.Provider

	opts    options
	logger  *Logger
	metrics MetricsCollector
}

// New creates a Service. The index is used as is; call LoadIndex (or load
// the indexstore.Store directly) before serving.
func New(deps Dependencies, optFns ...Option) (*Service, error) {
	if err := deps.validate(); err != nil {
		return nil, fmt.Errorf("findmymeow: %w", err)
	}

	opts := applyOptions(optFns)

	s := &Service{
		idx:      deps.Index,
		blobs:    deps.Blobs,
		meta:     deps.Metadata,
		ids:      deps.IDs,
		embedder: embedding.WithTimeout(deps.Embedder, opts.embedTimeout),
		opts:     opts,
		logger:   opts.logger,
		metrics:  opts.metricsCollector,
	}

	s.idx.SetPersistHook(func(info indexstore.PersistInfo) {
		s.logger.LogPersist(context.Background(), info)
		s.metrics.RecordPersist(info.Bytes, info.Duration, info.Err)
	})

	return s, nil
}

// LoadIndex (re)loads the index snapshot from blob storage.
func (s *Service) LoadIndex(ctx context.Context) error {
	return translateError(s.idx.Load(ctx))
}

// ResetIndex replaces the index with an empty one, persists it and reloads
// it. Image and post records are left untouched.
func (s *Service) ResetIndex(ctx context.Context) error {
	s.logger.WarnContext(ctx, "resetting index", "key", s.idx.SnapshotKey())
	return translateError(s.idx.Reset(ctx))
}

// IndexStats describes the current index.
func (s *Service) IndexStats() indexstore.Stats {
	return s.idx.Stats()
}
