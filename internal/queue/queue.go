// Package queue provides the bounded heap used for top-k selection.
package queue

import "container/heap"

// Compile time check to ensure PriorityQueue satisfies the heap interface.
var _ heap.Interface = (*PriorityQueue)(nil)

// Item is a candidate in the queue.
type Item struct {
	Key      int64   // index key the vector is tagged with
	Distance float32 // priority
}

// PriorityQueue is a max-heap on distance: the worst kept candidate is on
// top so it can be replaced in O(log k). Equal distances are ordered by key
// so results are deterministic.
type PriorityQueue struct {
	items []Item
}

// NewMax creates a queue with room for capacity items.
func NewMax(capacity int) *PriorityQueue {
	return &PriorityQueue{items: make([]Item, 0, capacity)}
}

// Len returns the number of elements in the priority queue.
func (pq *PriorityQueue) Len() int { return len(pq.items) }

// Less puts the worse item first.
func (pq *PriorityQueue) Less(i, j int) bool {
	return worse(pq.items[i], pq.items[j])
}

// worse reports whether a ranks after b in ascending-distance order.
func worse(a, b Item) bool {
	if a.Distance != b.Distance {
		return a.Distance > b.Distance
	}
	return a.Key > b.Key
}

// Swap swaps the elements with indexes i and j.
func (pq *PriorityQueue) Swap(i, j int) {
	pq.items[i], pq.items[j] = pq.items[j], pq.items[i]
}

// Push is part of heap.Interface. Use Offer instead.
func (pq *PriorityQueue) Push(x any) {
	pq.items = append(pq.items, x.(Item))
}

// Pop is part of heap.Interface. Use DrainAscending instead.
func (pq *PriorityQueue) Pop() any {
	n := len(pq.items)
	item := pq.items[n-1]
	pq.items[n-1] = Item{}
	pq.items = pq.items[:n-1]
	return item
}

// Offer keeps the k best (lowest distance) items seen so far.
func (pq *PriorityQueue) Offer(item Item, k int) {
	if len(pq.items) < k {
		heap.Push(pq, item)
		return
	}
	if !worse(pq.items[0], item) {
		return
	}
	pq.items[0] = item
	heap.Fix(pq, 0)
}

// DrainAscending empties the queue and returns its items in ascending
// distance order.
func (pq *PriorityQueue) DrainAscending() []Item {
	out := make([]Item, len(pq.items))
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(pq).(Item)
	}
	return out
}
