package embedding

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithTimeout(t *testing.T) {
	slow := Func(func(ctx context.Context, _ []byte) ([][]float32, error) {
		select {
		case <-time.After(time.Second):
			return [][]float32{{1}}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})

	t.Run("Expires", func(t *testing.T) {
		_, err := WithTimeout(slow, 10*time.Millisecond).DetectAndEmbed(context.Background(), nil)
		assert.ErrorIs(t, err, ErrTimeout)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("ParentCanceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := WithTimeout(slow, time.Minute).DetectAndEmbed(ctx, nil)
		assert.ErrorIs(t, err, context.Canceled)
		assert.NotErrorIs(t, err, ErrTimeout)
	})

	t.Run("FastPathUnchanged", func(t *testing.T) {
		fast := Func(func(context.Context, []byte) ([][]float32, error) {
			return [][]float32{{1, 2}}, nil
		})
		v, err := WithTimeout(fast, time.Second).DetectAndEmbed(context.Background(), nil)
		require.NoError(t, err)
		assert.Equal(t, [][]float32{{1, 2}}, v)
	})

	t.Run("ErrorsPassThrough", func(t *testing.T) {
		boom := errors.New("boom")
		failing := Func(func(context.Context, []byte) ([][]float32, error) { return nil, boom })
		_, err := WithTimeout(failing, time.Second).DetectAndEmbed(context.Background(), nil)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("ZeroDisables", func(t *testing.T) {
		_, wrapped := WithTimeout(slow, 0).(*timeoutProvider)
		assert.False(t, wrapped)
	})
}
