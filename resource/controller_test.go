package resource

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// shortDeadline returns a context that expires after 10ms, so a blocking
// acquire fails fast while free resources are still granted.
func shortDeadline(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	t.Cleanup(cancel)
	return ctx
}

func TestController_Bytes(t *testing.T) {
	c := NewController(Config{MaxInflightBytes: 100})

	require.NoError(t, c.AcquireBytes(context.Background(), 50))
	assert.Equal(t, int64(50), c.InflightBytes())

	require.NoError(t, c.AcquireBytes(context.Background(), 40))
	assert.Equal(t, int64(90), c.InflightBytes())

	assert.ErrorIs(t, c.AcquireBytes(shortDeadline(t), 20), context.DeadlineExceeded)
	assert.Equal(t, int64(90), c.InflightBytes())

	c.ReleaseBytes(50)
	assert.Equal(t, int64(40), c.InflightBytes())

	require.NoError(t, c.AcquireBytes(context.Background(), 20))
	assert.Equal(t, int64(60), c.InflightBytes())
}

func TestController_OversizedReservationIsClamped(t *testing.T) {
	c := NewController(Config{MaxInflightBytes: 100})

	require.NoError(t, c.AcquireBytes(context.Background(), 500))
	assert.Error(t, c.AcquireBytes(shortDeadline(t), 1))

	c.ReleaseBytes(500)
	assert.Equal(t, int64(0), c.InflightBytes())
	assert.NoError(t, c.AcquireBytes(shortDeadline(t), 100))
}

func TestController_UnlimitedBytes(t *testing.T) {
	c := NewController(Config{})

	require.NoError(t, c.AcquireBytes(context.Background(), 1000))
	assert.Equal(t, int64(1000), c.InflightBytes())

	c.ReleaseBytes(500)
	assert.Equal(t, int64(500), c.InflightBytes())
}

func TestController_Embeds(t *testing.T) {
	c := NewController(Config{MaxConcurrentEmbeds: 2})

	require.NoError(t, c.AcquireEmbed(context.Background()))
	require.NoError(t, c.AcquireEmbed(context.Background()))

	assert.ErrorIs(t, c.AcquireEmbed(shortDeadline(t)), context.DeadlineExceeded)

	c.ReleaseEmbed()
	assert.NoError(t, c.AcquireEmbed(shortDeadline(t)))
}

func TestController_DefaultEmbeds(t *testing.T) {
	c := NewController(Config{})
	assert.Equal(t, int64(DefaultMaxConcurrentEmbeds), c.Config().MaxConcurrentEmbeds)
}

func TestController_Nil(t *testing.T) {
	var c *Controller

	assert.NoError(t, c.AcquireEmbed(context.Background()))
	c.ReleaseEmbed()
	assert.NoError(t, c.AcquireBytes(context.Background(), 10))
	c.ReleaseBytes(10)
	assert.Zero(t, c.InflightBytes())
	assert.NoError(t, c.AcquireIO(context.Background(), 1<<20))
}

func TestController_IOLargerThanBurst(t *testing.T) {
	c := NewController(Config{IOLimitBytesPerSec: 1 << 20})

	// Twice the burst must not fail with "exceeds limiter's burst".
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, c.AcquireIO(ctx, 1<<21))
}

func TestThrottledIO(t *testing.T) {
	c := NewController(Config{IOLimitBytesPerSec: 1 << 20})
	ctx := context.Background()

	payload := bytes.Repeat([]byte("meow"), 1024)

	var buf bytes.Buffer
	w := c.ThrottleWriter(ctx, &buf)
	n, err := w.Write(payload)
	require.NoError(t, err)
	assert.Equal(t, len(payload), n)

	got, err := io.ReadAll(c.ThrottleReader(ctx, &buf))
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestThrottledReader_Canceled(t *testing.T) {
	c := NewController(Config{IOLimitBytesPerSec: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := io.ReadAll(c.ThrottleReader(ctx, bytes.NewReader(make([]byte, 64))))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestThrottle_UnlimitedIsPassthrough(t *testing.T) {
	var buf bytes.Buffer
	var nilController *Controller

	assert.Same(t, &buf, nilController.ThrottleWriter(context.Background(), &buf))
	assert.Same(t, &buf, NewController(Config{}).ThrottleReader(context.Background(), &buf))
}
