package flat

import (
	"context"
	"sync"
	"testing"

	"github.com/hupe1980/findmymeow/distance"
	"github.com/hupe1980/findmymeow/index"
	"github.com/hupe1980/findmymeow/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlat(t *testing.T, dim int) *Flat {
	t.Helper()

	f, err := New(func(o *Options) {
		o.Dimension = dim
	})
	require.NoError(t, err)

	return f
}

func TestFlat(t *testing.T) {
	ctx := context.Background()

	t.Run("Add", func(t *testing.T) {
		f := newFlat(t, 3)

		require.NoError(t, f.Add(1, [][]float32{{1, 2, 3}}))
		assert.Equal(t, 1, f.Len())
		assert.True(t, f.Contains(1))

		err := f.Add(2, [][]float32{{1, 2, 3}, {1, 2}})
		assert.Error(t, err)
		assert.IsType(t, &index.ErrDimensionMismatch{}, err)
		assert.False(t, f.Contains(2), "no vector of a rejected batch is inserted")
		assert.Equal(t, 1, f.Len())

		assert.ErrorIs(t, f.Add(-3, [][]float32{{1, 2, 3}}), index.ErrInvalidKey)
		assert.ErrorIs(t, f.Add(3, nil), index.ErrEmptyBatch)
	})

	t.Run("Search", func(t *testing.T) {
		f := newFlat(t, 3)

		require.NoError(t, f.Add(1, [][]float32{{1, 2, 3}}))
		require.NoError(t, f.Add(2, [][]float32{{4, 5, 6}}))
		require.NoError(t, f.Add(3, [][]float32{{7, 8, 9}}))

		res, err := f.Search(ctx, []float32{7, 8, 9}, 2)
		require.NoError(t, err)
		require.Len(t, res, 2)
		assert.Equal(t, int64(3), res[0].Key)
		assert.Equal(t, float32(0), res[0].Distance)
		assert.Equal(t, int64(2), res[1].Key)

		res, err = f.Search(ctx, []float32{0, 0, 0}, 10)
		require.NoError(t, err)
		assert.Len(t, res, 3)

		_, err = f.Search(ctx, []float32{0, 0}, 1)
		assert.IsType(t, &index.ErrDimensionMismatch{}, err)

		_, err = f.Search(ctx, []float32{0, 0, 0}, 0)
		assert.ErrorIs(t, err, index.ErrInvalidK)
	})

	t.Run("SearchEmpty", func(t *testing.T) {
		f := newFlat(t, 3)

		res, err := f.Search(ctx, []float32{1, 1, 1}, 5)
		require.NoError(t, err)
		assert.Empty(t, res)
	})

	t.Run("MultipleVectorsPerKey", func(t *testing.T) {
		f := newFlat(t, 2)

		require.NoError(t, f.Add(7, [][]float32{{0, 0}, {10, 10}}))
		require.NoError(t, f.Add(8, [][]float32{{5, 5}}))
		assert.Equal(t, 3, f.Len())
		assert.Equal(t, 2, f.KeyCount())

		res, err := f.Search(ctx, []float32{10, 10}, 3)
		require.NoError(t, err)
		require.Len(t, res, 3)
		assert.Equal(t, int64(7), res[0].Key)
		assert.Equal(t, int64(8), res[1].Key)
		assert.Equal(t, int64(7), res[2].Key)

		assert.Equal(t, 2, f.Remove(7))
		assert.Equal(t, 1, f.Len())

		res, err = f.Search(ctx, []float32{10, 10}, 3)
		require.NoError(t, err)
		require.Len(t, res, 1)
		assert.Equal(t, int64(8), res[0].Key)
	})

	t.Run("RemoveIsIdempotent", func(t *testing.T) {
		f := newFlat(t, 2)

		assert.Equal(t, 0, f.Remove(1), "remove on empty index")

		require.NoError(t, f.Add(1, [][]float32{{1, 1}}))
		assert.Equal(t, 1, f.Remove(1))
		assert.Equal(t, 0, f.Remove(1))
		assert.Equal(t, 0, f.Len())
	})

	t.Run("Reset", func(t *testing.T) {
		f := newFlat(t, 2)
		require.NoError(t, f.Add(1, [][]float32{{1, 1}}))

		f.Reset()
		assert.Equal(t, 0, f.Len())
		assert.False(t, f.Contains(1))
	})
}

func TestMetrics(t *testing.T) {
	ctx := context.Background()

	f, err := New(func(o *Options) {
		o.Dimension = 2
		o.Metric = distance.MetricCosine
	})
	require.NoError(t, err)

	require.NoError(t, f.Add(1, [][]float32{{1, 0}}))
	require.NoError(t, f.Add(2, [][]float32{{0, 1}}))

	res, err := f.Search(ctx, []float32{5, 0.1}, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res[0].Key)

	_, err = New(func(o *Options) { o.Dimension = 0 })
	assert.Error(t, err)
}

func TestSnapshotRestore(t *testing.T) {
	ctx := context.Background()
	rng := testutil.NewRNG(42)

	f := newFlat(t, 16)
	vecs := rng.UnitVectors(20, 16)
	for i, v := range vecs {
		require.NoError(t, f.Add(int64(i+1), [][]float32{v}))
	}

	snap := f.Snapshot()
	assert.Equal(t, 20, snap.Len())

	g := newFlat(t, 16)
	require.NoError(t, g.Restore(snap))
	assert.Equal(t, f.Stats(), g.Stats())

	// The restored index must not share writes with the snapshot.
	require.NoError(t, g.Add(100, [][]float32{vecs[0]}))
	assert.Equal(t, 20, snap.Len())

	for i, v := range vecs {
		res, err := g.Search(ctx, v, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(i+1), res[0].Key)
	}

	wrongDim := newFlat(t, 8)
	assert.ErrorIs(t, wrongDim.Restore(snap), ErrSnapshotMismatch)
}

func TestMatchesExactSearch(t *testing.T) {
	ctx := context.Background()
	rng := testutil.NewRNG(7)

	f := newFlat(t, 32)
	vecs := rng.UniformVectors(200, 32)
	keys := make([]int64, len(vecs))
	for i, v := range vecs {
		keys[i] = int64(i + 1)
		require.NoError(t, f.Add(keys[i], [][]float32{v}))
	}

	q := rng.UniformVectors(1, 32)[0]
	truth := testutil.ExactTopK(q, keys, vecs, 10, distance.SquaredL2)

	res, err := f.Search(ctx, q, 10)
	require.NoError(t, err)

	got := make([]testutil.SearchResult, len(res))
	for i, r := range res {
		got[i] = testutil.SearchResult{Key: r.Key, Distance: r.Distance}
	}
	assert.Equal(t, 1.0, testutil.ComputeRecall(truth, got))
}

func TestConcurrentReadWrite(t *testing.T) {
	ctx := context.Background()
	rng := testutil.NewRNG(1)
	f := newFlat(t, 8)

	vecs := rng.UnitVectors(100, 8)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := w; i < len(vecs); i += 4 {
				if err := f.Add(int64(i+1), [][]float32{vecs[i]}); err != nil {
					t.Error(err)
					return
				}
				if i%3 == 0 {
					f.Remove(int64(i + 1))
				}
			}
		}(w)
	}

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				if _, err := f.Search(ctx, vecs[i], 5); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}

	wg.Wait()

	want := 0
	for i := range vecs {
		if i%3 != 0 {
			want++
		}
	}
	assert.Equal(t, want, f.Len())
}
