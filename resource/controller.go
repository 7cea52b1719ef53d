// Package resource bounds the shared resources of a service process:
// concurrent calls into the embedding provider, bytes of image data held in
// memory by in-flight uploads, and snapshot IO throughput.
//
// A nil *Controller imposes no limits.
package resource

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds resource limits.
type Config struct {
	// MaxConcurrentEmbeds is the maximum number of concurrent embedding calls.
	// If 0, defaults to 4.
	MaxConcurrentEmbeds int64

	// MaxInflightBytes is the hard limit for image bytes held by in-flight
	// requests. If 0, no hard limit is enforced (only tracking).
	MaxInflightBytes int64

	// IOLimitBytesPerSec is the maximum snapshot IO throughput.
	// If 0, unlimited.
	IOLimitBytesPerSec int64
}

// DefaultMaxConcurrentEmbeds is used when Config.MaxConcurrentEmbeds is unset.
const DefaultMaxConcurrentEmbeds = 4

// Controller manages process-wide resources.
type Controller struct {
	cfg Config

	// Embedding concurrency
	embedSem *semaphore.Weighted

	// In-flight image bytes
	bytesSem  *semaphore.Weighted // nil if unlimited
	bytesUsed atomic.Int64

	// Snapshot IO
	ioLimiter *rate.Limiter
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	if cfg.MaxConcurrentEmbeds <= 0 {
		cfg.MaxConcurrentEmbeds = DefaultMaxConcurrentEmbeds
	}

	c := &Controller{
		cfg:      cfg,
		embedSem: semaphore.NewWeighted(cfg.MaxConcurrentEmbeds),
	}

	if cfg.MaxInflightBytes > 0 {
		c.bytesSem = semaphore.NewWeighted(cfg.MaxInflightBytes)
	}

	if cfg.IOLimitBytesPerSec > 0 {
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), int(cfg.IOLimitBytesPerSec))
	}

	return c
}

// Config returns the effective limits.
func (c *Controller) Config() Config {
	if c == nil {
		return Config{}
	}
	return c.cfg
}

// AcquireEmbed reserves an embedding slot, blocking until one is free or ctx
// is canceled.
func (c *Controller) AcquireEmbed(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.embedSem.Acquire(ctx, 1)
}

// ReleaseEmbed releases an embedding slot.
func (c *Controller) ReleaseEmbed() {
	if c == nil {
		return
	}
	c.embedSem.Release(1)
}

// AcquireBytes reserves room for n image bytes.
// If a hard limit is configured and usage would exceed it,
// this blocks until room is available or ctx is canceled.
func (c *Controller) AcquireBytes(ctx context.Context, n int64) error {
	if c == nil || n <= 0 {
		return nil
	}

	if c.bytesSem != nil {
		if c.cfg.MaxInflightBytes < n {
			n = c.cfg.MaxInflightBytes
		}
		if err := c.bytesSem.Acquire(ctx, n); err != nil {
			return err
		}
	}

	c.bytesUsed.Add(n)
	return nil
}

// ReleaseBytes releases a reservation made by AcquireBytes.
func (c *Controller) ReleaseBytes(n int64) {
	if c == nil || n <= 0 {
		return
	}

	if c.bytesSem != nil && c.cfg.MaxInflightBytes < n {
		n = c.cfg.MaxInflightBytes
	}
	if c.bytesSem != nil {
		c.bytesSem.Release(n)
	}
	c.bytesUsed.Add(-n)
}

// InflightBytes returns the currently reserved bytes.
func (c *Controller) InflightBytes() int64 {
	if c == nil {
		return 0
	}
	return c.bytesUsed.Load()
}

// AcquireIO waits until the IO limit allows n bytes. Requests larger than
// one second of budget are split.
func (c *Controller) AcquireIO(ctx context.Context, n int) error {
	if c == nil || c.ioLimiter == nil {
		return nil
	}

	burst := c.ioLimiter.Burst()
	for n > 0 {
		chunk := min(n, burst)
		if err := c.ioLimiter.WaitN(ctx, chunk); err != nil {
			return err
		}
		n -= chunk
	}
	return nil
}
