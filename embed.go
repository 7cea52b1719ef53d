package findmymeow

import (
	"context"
	"errors"
	"fmt"
)

// embed runs the embedding provider under the resource limits and checks the
// result against the index dimension. No store is touched.
func (s *Service) embed(ctx context.Context, image []byte) ([][]float32, error) {
	rc := s.opts.resources

	if err := rc.AcquireEmbed(ctx); err != nil {
		return nil, err
	}
	defer rc.ReleaseEmbed()

	n := int64(len(image))
	if err := rc.AcquireBytes(ctx, n); err != nil {
		return nil, err
	}
	defer rc.ReleaseBytes(n)

	s.logger.DebugContext(ctx, "embedding image", "bytes", n, "inflight_bytes", rc.InflightBytes())

	vectors, err := s.embedder.DetectAndEmbed(ctx, image)
	if err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return nil, err
		}
		if err = translateError(err); errors.Is(err, ErrEmbeddingUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingUnavailable, err)
	}

	if len(vectors) == 0 {
		return nil, ErrNoSubjectDetected
	}

	dim := s.idx.Dimension()
	for _, v := range vectors {
		if len(v) != dim {
			return nil, &ErrDimensionMismatch{Expected: dim, Actual: len(v)}
		}
	}

	return vectors, nil
}
