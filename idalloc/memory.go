package idalloc

import (
	"context"
	"sync"
)

// Memory is a process-local Allocator. It is only durable for the lifetime of
// the process and is meant for tests and single-shot tools.
type Memory struct {
	mu       sync.Mutex
	counters map[string]int64
}

// NewMemory returns an empty in-memory allocator.
func NewMemory() *Memory {
	return &Memory{counters: make(map[string]int64)}
}

// NextID implements Allocator.
func (m *Memory) NextID(ctx context.Context, namespace string) (int64, error) {
	if namespace == "" {
		return 0, ErrInvalidNamespace
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.counters[namespace]++
	return m.counters[namespace], nil
}

// Seed sets the counter so the next ID is last+1, if that is larger than the
// current state.
func (m *Memory) Seed(namespace string, last int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if last > m.counters[namespace] {
		m.counters[namespace] = last
	}
}
