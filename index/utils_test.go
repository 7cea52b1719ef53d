package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBestByKey(t *testing.T) {
	got := BestByKey(
		[]SearchResult{{Key: 7, Distance: 0.5}, {Key: 3, Distance: 0.9}, {Key: -1, Distance: 0}},
		[]SearchResult{{Key: 3, Distance: 0.2}, {Key: 9, Distance: 0.5}},
	)

	require.Len(t, got, 3)
	assert.Equal(t, SearchResult{Key: 3, Distance: 0.2}, got[0])
	assert.Equal(t, SearchResult{Key: 7, Distance: 0.5}, got[1])
	assert.Equal(t, SearchResult{Key: 9, Distance: 0.5}, got[2])
}

func TestValidateDimension(t *testing.T) {
	require.NoError(t, ValidateDimension(2, [][]float32{{1, 2}, {3, 4}}))

	err := ValidateDimension(2, [][]float32{{1, 2}, {3}})
	var dm *ErrDimensionMismatch
	require.ErrorAs(t, err, &dm)
	assert.Equal(t, 2, dm.Expected)
	assert.Equal(t, 1, dm.Actual)
}
