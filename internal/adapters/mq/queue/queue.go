// Package queue implements a bounded, blocking FIFO shared by producers and consumers.
//
// All mutations of the buffer and the closed flag happen under one mutex.
// Blocked callers wait on condition variables tied to that mutex and re-check
// their predicate after every wakeup.
package queue

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/handoff/pkg/metrics"
)

const defaultName = "default"

// Rejection reasons reported to metrics.
const (
	reasonClosed      = "closed"
	reasonEmptyClosed = "empty_closed"
	reasonFull        = "full"
	reasonEmpty       = "empty"
)

// State describes where a queue is in its lifecycle.
type State int

const (
	// Open accepts enqueues and dequeues.
	Open State = iota
	// Closing is closed but still holds items for consumers to drain.
	Closing
	// Drained is closed and empty. Terminal.
	Drained
)

func (s State) String() string {
	switch s {
	case Open:
		return "open"
	case Closing:
		return "closing"
	case Drained:
		return "drained"
	default:
		return "unknown"
	}
}

// BoundedQueue is a fixed-capacity FIFO safe for any number of producers and
// consumers. The zero value is not usable; construct with New.
type BoundedQueue[T any] struct {
	mu       sync.Mutex
	notFull  *sync.Cond
	notEmpty *sync.Cond

	// ring buffer, guarded by mu
	items    []T
	head     int
	tail     int
	count    int
	capacity int
	closed   bool

	// goroutines inside a wait loop, guarded by mu
	producersWaiting int
	consumersWaiting int

	// lock-free mirrors for Len and IsClosed
	size       atomic.Int64
	closedFlag atomic.Bool

	name    string
	metrics *metrics.Manager
}

// New creates a queue holding at most capacity items.
func New[T any](capacity int, opts ...Option) (*BoundedQueue[T], error) {
	if capacity < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrCapacity, capacity)
	}

	o := options{name: defaultName, metrics: metrics.Global()}
	for _, opt := range opts {
		opt(&o)
	}

	q := &BoundedQueue[T]{
		items:    make([]T, capacity),
		capacity: capacity,
		name:     o.name,
		metrics:  o.metrics,
	}
	q.notFull = sync.NewCond(&q.mu)
	q.notEmpty = sync.NewCond(&q.mu)

	q.metrics.SetQueueCapacity(q.name, capacity)
	q.metrics.SetQueueDepth(q.name, 0)

	return q, nil
}

// Enqueue appends item to the tail, blocking while the queue is full.
// It returns ErrClosed without inserting if the queue is closed before or
// while the caller waits.
func (q *BoundedQueue[T]) Enqueue(item T) error {
	q.mu.Lock()
	if q.count == q.capacity && !q.closed {
		q.waitNotFull()
	}
	if q.closed {
		q.mu.Unlock()
		q.metrics.RecordRejected(q.name, reasonClosed)
		return ErrClosed
	}

	q.push(item)
	// One new item can satisfy at most one consumer.
	q.notEmpty.Signal()
	q.mu.Unlock()

	q.metrics.RecordEnqueue(q.name)
	return nil
}

// Dequeue removes and returns the head item, blocking while the queue is
// empty and open. Items buffered before Close are still returned; once the
// queue is closed and empty it returns ErrEmptyClosed.
func (q *BoundedQueue[T]) Dequeue() (T, error) {
	q.mu.Lock()
	if q.count == 0 && !q.closed {
		q.waitNotEmpty()
	}
	if q.count == 0 {
		q.mu.Unlock()
		q.metrics.RecordRejected(q.name, reasonEmptyClosed)
		var zero T
		return zero, ErrEmptyClosed
	}

	item := q.pop()
	q.wakeProducers()
	q.mu.Unlock()

	q.metrics.RecordDequeue(q.name)
	return item, nil
}

// TryEnqueue is Enqueue without blocking. It reports false when the queue is
// full and returns ErrClosed once closed.
func (q *BoundedQueue[T]) TryEnqueue(item T) (bool, error) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		q.metrics.RecordRejected(q.name, reasonClosed)
		return false, ErrClosed
	}
	if q.count == q.capacity {
		q.mu.Unlock()
		q.metrics.RecordRejected(q.name, reasonFull)
		return false, nil
	}

	q.push(item)
	q.notEmpty.Signal()
	q.mu.Unlock()

	q.metrics.RecordEnqueue(q.name)
	return true, nil
}

// TryDequeue is Dequeue without blocking. It reports false when the queue is
// empty and open, and returns ErrEmptyClosed once closed and drained.
func (q *BoundedQueue[T]) TryDequeue() (T, bool, error) {
	var zero T

	q.mu.Lock()
	if q.count == 0 {
		closed := q.closed
		q.mu.Unlock()
		if closed {
			q.metrics.RecordRejected(q.name, reasonEmptyClosed)
			return zero, false, ErrEmptyClosed
		}
		q.metrics.RecordRejected(q.name, reasonEmpty)
		return zero, false, nil
	}

	item := q.pop()
	q.wakeProducers()
	q.mu.Unlock()

	q.metrics.RecordDequeue(q.name)
	return item, true, nil
}

// Close marks the queue closed and wakes every blocked producer and consumer.
// Calls after the first are no-ops.
func (q *BoundedQueue[T]) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.closedFlag.Store(true)
	q.notFull.Broadcast()
	q.notEmpty.Broadcast()
	q.mu.Unlock()

	q.metrics.RecordClose(q.name)
}

// Len returns a snapshot of the number of buffered items. The value may be
// stale by the time the caller reads it; use it for reporting only.
func (q *BoundedQueue[T]) Len() int {
	return int(q.size.Load())
}

// Cap returns the fixed capacity.
func (q *BoundedQueue[T]) Cap() int {
	return q.capacity
}

// IsClosed reports whether Close has been called.
func (q *BoundedQueue[T]) IsClosed() bool {
	return q.closedFlag.Load()
}

// State returns the current lifecycle state.
func (q *BoundedQueue[T]) State() State {
	q.mu.Lock()
	defer q.mu.Unlock()

	switch {
	case !q.closed:
		return Open
	case q.count > 0:
		return Closing
	default:
		return Drained
	}
}

// Waiting returns how many producers and consumers are currently blocked.
func (q *BoundedQueue[T]) Waiting() (producers, consumers int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.producersWaiting, q.consumersWaiting
}

// Name returns the metrics label of the queue.
func (q *BoundedQueue[T]) Name() string {
	return q.name
}

// waitNotFull blocks until there is room or the queue is closed. mu must be held.
func (q *BoundedQueue[T]) waitNotFull() {
	start := time.Now()
	q.producersWaiting++
	q.metrics.AddWaiters(q.name, metrics.SideProducer, 1)

	for q.count == q.capacity && !q.closed {
		q.notFull.Wait()
	}

	q.producersWaiting--
	q.metrics.AddWaiters(q.name, metrics.SideProducer, -1)
	q.metrics.ObserveWait(q.name, metrics.SideProducer, time.Since(start).Seconds())
}

// waitNotEmpty blocks until an item is available or the queue is closed. mu must be held.
func (q *BoundedQueue[T]) waitNotEmpty() {
	start := time.Now()
	q.consumersWaiting++
	q.metrics.AddWaiters(q.name, metrics.SideConsumer, 1)

	for q.count == 0 && !q.closed {
		q.notEmpty.Wait()
	}

	q.consumersWaiting--
	q.metrics.AddWaiters(q.name, metrics.SideConsumer, -1)
	q.metrics.ObserveWait(q.name, metrics.SideConsumer, time.Since(start).Seconds())
}

// wakeProducers notifies producers after a slot was freed. A single signal is
// only enough for a one-slot queue with at most one waiting producer; every
// other case broadcasts and lets the waiters re-check. mu must be held.
func (q *BoundedQueue[T]) wakeProducers() {
	switch {
	case q.producersWaiting == 0:
		return
	case q.capacity == 1 && q.producersWaiting == 1:
		q.notFull.Signal()
		q.metrics.RecordWakeup(q.name, metrics.WakeSignal)
	default:
		q.notFull.Broadcast()
		q.metrics.RecordWakeup(q.name, metrics.WakeBroadcast)
	}
}

// push stores item at the tail. mu must be held and the queue not full.
func (q *BoundedQueue[T]) push(item T) {
	q.items[q.tail] = item
	q.tail++
	if q.tail == q.capacity {
		q.tail = 0
	}
	q.count++
	q.size.Store(int64(q.count))
	q.metrics.SetQueueDepth(q.name, q.count)
}

// pop removes the head item and clears its slot. mu must be held and the queue not empty.
func (q *BoundedQueue[T]) pop() T {
	var zero T
	item := q.items[q.head]
	q.items[q.head] = zero
	q.head++
	if q.head == q.capacity {
		q.head = 0
	}
	q.count--
	q.size.Store(int64(q.count))
	q.metrics.SetQueueDepth(q.name, q.count)
	return item
}
