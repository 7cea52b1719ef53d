package testutil

import (
	"testing"

	"github.com/hupe1980/findmymeow/distance"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUniformVectors(t *testing.T) {
	rng := NewRNG(4711)

	v := rng.UniformVectors(8, 32)

	assert.Equal(t, 8, len(v))
	assert.Equal(t, 32, len(v[0]))
	assert.LessOrEqual(t, v[0][0], float32(1.0))
	assert.GreaterOrEqual(t, v[1][0], float32(0.0))
}

func TestUnitVectors(t *testing.T) {
	rng := NewRNG(4711)

	v := rng.UnitVectors(8, 32)

	assert.Equal(t, 8, len(v))
	for _, vec := range v {
		assert.Len(t, vec, 32)
		assert.InDelta(t, float32(1.0), distance.Dot(vec, vec), 1e-5)
	}
}

func TestReset(t *testing.T) {
	rng := NewRNG(4711)
	v1 := rng.UniformVectors(1, 10)

	rng.Reset()
	v2 := rng.UniformVectors(1, 10)

	assert.Equal(t, v1, v2)
}

func TestExactTopK(t *testing.T) {
	vectors := [][]float32{{0, 0}, {1, 0}, {3, 0}, {0.5, 0}}
	keys := []int64{10, 11, 12, 13}

	res := ExactTopK([]float32{0.9, 0}, keys, vectors, 2, distance.SquaredL2)
	require.Len(t, res, 2)
	assert.Equal(t, int64(11), res[0].Key)
	assert.Equal(t, int64(13), res[1].Key)
}

func TestComputeRecall(t *testing.T) {
	truth := []SearchResult{{Key: 1}, {Key: 2}, {Key: 3}, {Key: 4}}
	approx := []SearchResult{{Key: 1}, {Key: 5}, {Key: 3}, {Key: 4}}

	assert.InDelta(t, 0.75, ComputeRecall(truth, approx), 1e-9)
	assert.Equal(t, 1.0, ComputeRecall(nil, nil))
	assert.Equal(t, 0.0, ComputeRecall(truth, nil))
}
