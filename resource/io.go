package resource

import (
	"context"
	"io"
)

// ThrottleWriter returns a writer that waits for IO budget before every
// write. Without an IO limit w is returned unchanged.
func (c *Controller) ThrottleWriter(ctx context.Context, w io.Writer) io.Writer {
	if c == nil || c.ioLimiter == nil {
		return w
	}
	return &throttledWriter{ctx: ctx, next: w, c: c}
}

// ThrottleReader returns a reader that is charged for the bytes it returns.
// Without an IO limit r is returned unchanged.
func (c *Controller) ThrottleReader(ctx context.Context, r io.Reader) io.Reader {
	if c == nil || c.ioLimiter == nil {
		return r
	}
	return &throttledReader{ctx: ctx, next: r, c: c}
}

type throttledWriter struct {
	ctx  context.Context
	next io.Writer
	c    *Controller
}

func (t *throttledWriter) Write(p []byte) (int, error) {
	if err := t.c.AcquireIO(t.ctx, len(p)); err != nil {
		return 0, err
	}
	return t.next.Write(p)
}

type throttledReader struct {
	ctx  context.Context
	next io.Reader
	c    *Controller
}

func (t *throttledReader) Read(p []byte) (int, error) {
	n, err := t.next.Read(p)
	if n > 0 {
		if waitErr := t.c.AcquireIO(t.ctx, n); waitErr != nil {
			return n, waitErr
		}
	}
	return n, err
}
