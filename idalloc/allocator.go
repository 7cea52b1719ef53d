// Package idalloc hands out strictly increasing integer identifiers from
// atomic per-namespace counters in durable shared storage.
//
// Identifiers start at 1, are never repeated and may have gaps (an ID whose
// ingestion failed is simply skipped). Concurrent callers, including callers
// in other processes sharing the same backend, never receive the same value.
package idalloc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Well-known namespaces.
const (
	ImageID = "image_id"
	PostID  = "post_id"
)

var (
	// ErrStorageUnavailable is returned when the counter cannot be read or
	// incremented. No identifier is fabricated in that case.
	ErrStorageUnavailable = errors.New("id allocator: storage unavailable")

	// ErrInvalidNamespace is returned for an empty namespace.
	ErrInvalidNamespace = errors.New("id allocator: namespace must not be empty")
)

// Allocator returns the next identifier of a namespace.
type Allocator interface {
	NextID(ctx context.Context, namespace string) (int64, error)
}

// Options configures the persistent allocators.
type Options struct {
	// Logger receives allocation failures. Defaults to slog.Default().
	Logger *slog.Logger

	// MaxRetries bounds retries on transaction conflicts.
	MaxRetries int
}

// DefaultOptions are used when no option function is given.
var DefaultOptions = Options{
	MaxRetries: 16,
}

func applyOptions(optFns []func(o *Options)) Options {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return opts
}

func unavailable(namespace string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorageUnavailable, namespace, err)
}

// Func adapts a function to Allocator.
type Func func(ctx context.Context, namespace string) (int64, error)

// NextID calls f.
func (f Func) NextID(ctx context.Context, namespace string) (int64, error) {
	return f(ctx, namespace)
}
