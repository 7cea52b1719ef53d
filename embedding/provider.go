// Package embedding turns images into feature vectors, one per detected cat.
//
// The detection and embedding models run outside this process. Provider is
// the narrow contract the service depends on; HTTPProvider talks to a model
// server over HTTP and Func adapts plain functions for tests.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrTimeout is returned when the provider does not answer within the
// configured timeout.
var ErrTimeout = errors.New("embedding: timeout")

// Provider detects subjects in an image and embeds each of them.
//
// An image without detectable subjects yields an empty result, not an error.
type Provider interface {
	DetectAndEmbed(ctx context.Context, image []byte) ([][]float32, error)
}

// Func adapts a function to Provider.
type Func func(ctx context.Context, image []byte) ([][]float32, error)

// DetectAndEmbed calls f.
func (f Func) DetectAndEmbed(ctx context.Context, image []byte) ([][]float32, error) {
	return f(ctx, image)
}

// WithTimeout bounds every call to p by d. A zero or negative d disables the
// bound.
func WithTimeout(p Provider, d time.Duration) Provider {
	if d <= 0 {
		return p
	}
	return &timeoutProvider{next: p, timeout: d}
}

type timeoutProvider struct {
	next    Provider
	timeout time.Duration
}

func (t *timeoutProvider) DetectAndEmbed(ctx context.Context, image []byte) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	type result struct {
		vectors [][]float32
		err     error
	}

	done := make(chan result, 1)
	go func() {
		v, err := t.next.DetectAndEmbed(ctx, image)
		done <- result{v, err}
	}()

	select {
	case r := <-done:
		if r.err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s: %w", ErrTimeout, t.timeout, r.err)
		}
		return r.vectors, r.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s: %w", ErrTimeout, t.timeout, ctx.Err())
		}
		return nil, ctx.Err()
	}
}
