package queue

import "errors"

// Sentinel kinds for queue errors. All of them are terminal: the queue never
// retries internally and callers should not retry on them.
var (
	// ErrClosed is returned by Enqueue once the queue is closed, including to
	// producers that were blocked on a full queue when Close was called.
	ErrClosed = errors.New("queue closed")

	// ErrEmptyClosed is returned by Dequeue when the queue is closed and every
	// buffered item has been drained.
	ErrEmptyClosed = errors.New("queue closed and drained")

	// ErrCapacity is returned by New when the requested capacity is below 1.
	ErrCapacity = errors.New("queue capacity must be at least 1")
)
