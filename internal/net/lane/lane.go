// Package lane provides one ordered FIFO per replication channel, each
// drained by its own worker.
package lane

import (
	"context"
	"sync"
)

// Metrics receives lane occupancy and overflow counts.
type Metrics interface {
	Add(string, uint64)
	Store(string, uint64)
}

// Lane stores queued items in a fixed-size ring. It is safe for concurrent
// producers and a single consumer.
type Lane[T any] struct {
	name        string
	overflowKey string
	occupancy   string

	mu      sync.Mutex
	data    []T
	head    int
	tail    int
	count   int
	notify  chan struct{}
	metrics Metrics
}

// New constructs a lane with the provided capacity.
func New[T any](name string, capacity int, metrics Metrics) *Lane[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Lane[T]{
		name:        name,
		overflowKey: "lane_" + name + "_overflow_total",
		occupancy:   "lane_" + name + "_occupancy",
		data:        make([]T, capacity),
		notify:      make(chan struct{}, 1),
		metrics:     metrics,
	}
}

// Name identifies the lane in metrics and logs.
func (l *Lane[T]) Name() string {
	if l == nil {
		return ""
	}
	return l.name
}

// Capacity reports the maximum number of queued items.
func (l *Lane[T]) Capacity() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.data)
}

// Push queues an item, returning false if the lane is full.
func (l *Lane[T]) Push(item T) bool {
	if l == nil {
		return false
	}
	l.mu.Lock()
	if l.count == len(l.data) {
		l.mu.Unlock()
		if l.metrics != nil {
			l.metrics.Add(l.overflowKey, 1)
		}
		return false
	}
	l.data[l.tail] = item
	l.tail = (l.tail + 1) % len(l.data)
	l.count++
	l.storeOccupancyLocked()
	l.mu.Unlock()

	select {
	case l.notify <- struct{}{}:
	default:
	}
	return true
}

// Drain returns all queued items in FIFO order and clears the lane.
func (l *Lane[T]) Drain() []T {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.count == 0 {
		return nil
	}
	items := make([]T, l.count)
	var zero T
	for i := 0; i < l.count; i++ {
		idx := (l.head + i) % len(l.data)
		items[i] = l.data[idx]
		l.data[idx] = zero
	}
	l.head = 0
	l.tail = 0
	l.count = 0
	l.storeOccupancyLocked()
	return items
}

// Len reports the number of queued items.
func (l *Lane[T]) Len() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

// Run hands queued items to handle one at a time, in push order, until ctx
// is done. Items still queued when ctx ends are left in the lane.
func (l *Lane[T]) Run(ctx context.Context, handle func(context.Context, T)) error {
	for {
		for _, item := range l.Drain() {
			handle(ctx, item)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.notify:
		}
	}
}

func (l *Lane[T]) storeOccupancyLocked() {
	if l.metrics == nil {
		return
	}
	l.metrics.Store(l.occupancy, uint64(l.count))
}
