package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/okian/handoff/internal/adapters/mq/queue"
	"github.com/okian/handoff/pkg/logger"
	"github.com/okian/handoff/pkg/metrics"
)

const roleConsumer = "consumer"

// Dequeuer is the consumer-side view of a queue.
type Dequeuer[T any] interface {
	Dequeue() (T, error)
}

// Sink receives items taken off the queue.
type Sink[T any] interface {
	Put(ctx context.Context, item T) error
}

// Consumer drains a queue into a sink until the queue is closed and empty.
type Consumer[T any] struct {
	queue   Dequeuer[T]
	sink    Sink[T]
	name    string
	logger  logger.Logger
	metrics *metrics.Manager
	count   atomic.Int64
}

// NewConsumer creates a consumer that moves items from q into sink.
func NewConsumer[T any](q Dequeuer[T], sink Sink[T], opts ...Option) *Consumer[T] {
	c := newRoleConfig(roleConsumer, opts)
	return &Consumer[T]{
		queue:   q,
		sink:    sink,
		name:    c.name,
		logger:  c.logger,
		metrics: c.metrics,
	}
}

// Name returns the consumer name.
func (c *Consumer[T]) Name() string { return c.name }

// Count returns how many items have been delivered to the sink so far.
func (c *Consumer[T]) Count() int { return int(c.count.Load()) }

// Run dequeues until the queue reports it is closed and drained, which is
// normal completion. A sink failure or cancelled ctx stops the loop and is
// returned.
func (c *Consumer[T]) Run(ctx context.Context) (Report, error) {
	start := time.Now()
	report := Report{Role: roleConsumer, Name: c.name}

	c.logger.Debug(ctx, "consumer started")

	var runErr error
	for {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		item, err := c.queue.Dequeue()
		if err != nil {
			if errors.Is(err, queue.ErrEmptyClosed) {
				break
			}
			c.metrics.RecordRoleError(roleConsumer, "dequeue")
			runErr = fmt.Errorf("consumer %s: dequeue: %w", c.name, err)
			break
		}

		if err := c.sink.Put(ctx, item); err != nil {
			c.metrics.RecordRoleError(roleConsumer, "sink")
			runErr = fmt.Errorf("consumer %s: sink: %w", c.name, err)
			break
		}

		c.count.Add(1)
		c.metrics.RecordConsumed(c.name)
	}

	report.Count = c.Count()
	report.Duration = time.Since(start)
	if runErr != nil {
		report.Err = runErr
		c.logger.Error(ctx, "consumer stopped", logger.Error(runErr), logger.Int("consumed", report.Count))
		return report, runErr
	}

	c.logger.Debug(ctx, "consumer finished",
		logger.Int("consumed", report.Count),
		logger.Duration("duration", report.Duration))
	return report, nil
}
