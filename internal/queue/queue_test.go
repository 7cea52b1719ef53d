package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOfferKeepsBestK(t *testing.T) {
	pq := NewMax(3)
	for i, d := range []float32{9, 4, 7, 1, 8, 2} {
		pq.Offer(Item{Key: int64(i + 1), Distance: d}, 3)
	}

	items := pq.DrainAscending()
	require.Len(t, items, 3)
	assert.Equal(t, int64(4), items[0].Key)
	assert.Equal(t, int64(6), items[1].Key)
	assert.Equal(t, int64(2), items[2].Key)
	assert.Equal(t, 0, pq.Len())
}

func TestOfferBelowCapacity(t *testing.T) {
	pq := NewMax(4)
	for _, d := range []float32{3, 1, 2} {
		pq.Offer(Item{Key: int64(d * 10), Distance: d}, 4)
	}

	items := pq.DrainAscending()
	assert.Equal(t, []int64{10, 20, 30}, []int64{items[0].Key, items[1].Key, items[2].Key})
	assert.Empty(t, pq.DrainAscending())
}

func TestTiesOrderedByKey(t *testing.T) {
	pq := NewMax(2)
	pq.Offer(Item{Key: 5, Distance: 1}, 2)
	pq.Offer(Item{Key: 3, Distance: 1}, 2)
	pq.Offer(Item{Key: 4, Distance: 1}, 2)

	items := pq.DrainAscending()
	require.Len(t, items, 2)
	assert.Equal(t, int64(3), items[0].Key)
	assert.Equal(t, int64(4), items[1].Key)
}
