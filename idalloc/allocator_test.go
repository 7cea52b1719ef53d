package idalloc

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertUniqueUnderConcurrency(t *testing.T, a Allocator) {
	t.Helper()

	const workers, perWorker = 8, 50

	var (
		mu   sync.Mutex
		seen = make(map[int64]struct{}, workers*perWorker)
		wg   sync.WaitGroup
	)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			last := int64(0)
			for i := 0; i < perWorker; i++ {
				id, err := a.NextID(context.Background(), ImageID)
				if !assert.NoError(t, err) {
					return
				}
				assert.Greater(t, id, last, "ids must increase per caller")
				last = id

				mu.Lock()
				_, dup := seen[id]
				seen[id] = struct{}{}
				mu.Unlock()
				assert.False(t, dup, "duplicate id %d", id)
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, workers*perWorker)
}

func TestMemory(t *testing.T) {
	ctx := context.Background()

	t.Run("StartsAtOne", func(t *testing.T) {
		m := NewMemory()
		id, err := m.NextID(ctx, ImageID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), id)
	})

	t.Run("NamespacesAreIndependent", func(t *testing.T) {
		m := NewMemory()
		a, _ := m.NextID(ctx, ImageID)
		b, _ := m.NextID(ctx, ImageID)
		p, _ := m.NextID(ctx, PostID)
		assert.Equal(t, int64(1), a)
		assert.Equal(t, int64(2), b)
		assert.Equal(t, int64(1), p)
	})

	t.Run("Seed", func(t *testing.T) {
		m := NewMemory()
		m.Seed(ImageID, 41)
		m.Seed(ImageID, 3)
		id, err := m.NextID(ctx, ImageID)
		require.NoError(t, err)
		assert.Equal(t, int64(42), id)
	})

	t.Run("EmptyNamespace", func(t *testing.T) {
		_, err := NewMemory().NextID(ctx, "")
		assert.ErrorIs(t, err, ErrInvalidNamespace)
	})

	t.Run("CanceledContext", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := NewMemory().NextID(cctx, ImageID)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("Concurrent", func(t *testing.T) {
		assertUniqueUnderConcurrency(t, NewMemory())
	})
}

func TestFunc(t *testing.T) {
	f := Func(func(_ context.Context, ns string) (int64, error) {
		if ns == PostID {
			return 7, nil
		}
		return 0, ErrStorageUnavailable
	})

	id, err := f.NextID(context.Background(), PostID)
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)

	_, err = f.NextID(context.Background(), ImageID)
	assert.ErrorIs(t, err, ErrStorageUnavailable)
}
