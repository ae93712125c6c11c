package worker

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync/atomic"
	"time"

	"github.com/okian/handoff/internal/adapters/mq/queue"
	"github.com/okian/handoff/pkg/logger"
	"github.com/okian/handoff/pkg/metrics"
)

const roleProducer = "producer"

// Enqueuer is the producer-side view of a queue.
type Enqueuer[T any] interface {
	Enqueue(item T) error
}

// Report summarises one role's run.
type Report struct {
	Role     string
	Name     string
	Count    int
	Duration time.Duration
	// Err is the terminal condition that ended the loop early, such as
	// queue.ErrClosed for a producer. Nil when the role ran to completion.
	Err error
}

// Producer feeds every item of a source into a queue, in source order.
type Producer[T any] struct {
	queue   Enqueuer[T]
	source  iter.Seq[T]
	name    string
	logger  logger.Logger
	metrics *metrics.Manager
	count   atomic.Int64
}

// NewProducer creates a producer that drains source into q.
func NewProducer[T any](q Enqueuer[T], source iter.Seq[T], opts ...Option) *Producer[T] {
	c := newRoleConfig(roleProducer, opts)
	return &Producer[T]{
		queue:   q,
		source:  source,
		name:    c.name,
		logger:  c.logger,
		metrics: c.metrics,
	}
}

// Name returns the producer name.
func (p *Producer[T]) Name() string { return p.name }

// Count returns how many items have been enqueued so far.
func (p *Producer[T]) Count() int { return int(p.count.Load()) }

// Run enqueues items until the source is exhausted, the queue is closed or
// ctx is cancelled. A closed queue is reported in Report.Err and is not an
// error; cancellation and unexpected enqueue failures are returned.
func (p *Producer[T]) Run(ctx context.Context) (Report, error) {
	start := time.Now()
	report := Report{Role: roleProducer, Name: p.name}

	p.logger.Debug(ctx, "producer started")

	var runErr error
	for item := range p.source {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		if err := p.queue.Enqueue(item); err != nil {
			if errors.Is(err, queue.ErrClosed) {
				report.Err = err
				p.metrics.RecordRoleError(roleProducer, "closed")
				p.logger.Warn(ctx, "queue closed before source was exhausted",
					logger.Int("enqueued", p.Count()))
				break
			}
			p.metrics.RecordRoleError(roleProducer, "enqueue")
			runErr = fmt.Errorf("producer %s: enqueue: %w", p.name, err)
			break
		}

		p.count.Add(1)
		p.metrics.RecordProduced(p.name)
	}

	report.Count = p.Count()
	report.Duration = time.Since(start)
	if runErr != nil {
		report.Err = runErr
		p.logger.Error(ctx, "producer stopped", logger.Error(runErr), logger.Int("enqueued", report.Count))
		return report, runErr
	}

	p.logger.Debug(ctx, "producer finished",
		logger.Int("enqueued", report.Count),
		logger.Duration("duration", report.Duration))
	return report, nil
}
