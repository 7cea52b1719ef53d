package idalloc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBadger(t *testing.T) {
	ctx := context.Background()

	t.Run("RequiresDir", func(t *testing.T) {
		_, err := NewBadger(BadgerOptions{})
		require.Error(t, err)
	})

	t.Run("InMemoryConcurrent", func(t *testing.T) {
		b, err := NewBadger(BadgerOptions{InMemory: true})
		require.NoError(t, err)
		defer b.Close()

		assertUniqueUnderConcurrency(t, b)
	})

	t.Run("SurvivesReopen", func(t *testing.T) {
		dir := t.TempDir()

		b, err := NewBadger(BadgerOptions{Dir: dir})
		require.NoError(t, err)

		for i := 1; i <= 3; i++ {
			id, err := b.NextID(ctx, ImageID)
			require.NoError(t, err)
			assert.Equal(t, int64(i), id)
		}
		require.NoError(t, b.Close())

		b, err = NewBadger(BadgerOptions{Dir: dir})
		require.NoError(t, err)
		defer b.Close()

		id, err := b.NextID(ctx, ImageID)
		require.NoError(t, err)
		assert.Equal(t, int64(4), id, "counter must never repeat after reopen")

		id, err = b.NextID(ctx, PostID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), id)
	})

	t.Run("ClosedDBIsUnavailable", func(t *testing.T) {
		b, err := NewBadger(BadgerOptions{InMemory: true})
		require.NoError(t, err)
		require.NoError(t, b.Close())

		_, err = b.NextID(ctx, ImageID)
		assert.ErrorIs(t, err, ErrStorageUnavailable)
	})
}
