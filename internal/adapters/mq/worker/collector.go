package worker

import (
	"context"
	"sync"
)

// Collector is a Sink that records items in arrival order.
type Collector[T any] struct {
	mu    sync.Mutex
	items []T
}

// NewCollector creates a collector with room for sizeHint items.
func NewCollector[T any](sizeHint int) *Collector[T] {
	if sizeHint < 0 {
		sizeHint = 0
	}
	return &Collector[T]{items: make([]T, 0, sizeHint)}
}

// Put appends item.
func (c *Collector[T]) Put(_ context.Context, item T) error {
	c.mu.Lock()
	c.items = append(c.items, item)
	c.mu.Unlock()
	return nil
}

// Snapshot returns a copy of the items collected so far.
func (c *Collector[T]) Snapshot() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}

// Len returns the number of collected items.
func (c *Collector[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
