package worker_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"slices"
	"sync"
	"testing"
	"time"

	queue "github.com/okian/handoff/internal/adapters/mq/queue"
	worker "github.com/okian/handoff/internal/adapters/mq/worker"
	model "github.com/okian/handoff/internal/domain/model"
	logging "github.com/okian/handoff/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logging.Init(logging.WithOutput(io.Discard)); err != nil {
		panic(err)
	}
}

// Mock implementations for testing.
type mockEnqueuer struct {
	mu       sync.Mutex
	items    []int
	failAt   int
	failWith error
}

func (m *mockEnqueuer) Enqueue(item int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil && len(m.items) == m.failAt {
		return m.failWith
	}
	m.items = append(m.items, item)
	return nil
}

func (m *mockEnqueuer) snapshot() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.items)
}

type failingSink struct {
	err error
}

func (s *failingSink) Put(context.Context, int) error { return s.err }

func newQueue[T any](t *testing.T, capacity int) *queue.BoundedQueue[T] {
	t.Helper()
	q, err := queue.New[T](capacity, queue.WithMetrics(nil))
	if err != nil {
		t.Fatalf("queue.New: %v", err)
	}
	return q
}

func ints(n int) iter.Seq[int] {
	return func(yield func(int) bool) {
		for i := 1; i <= n; i++ {
			if !yield(i) {
				return
			}
		}
	}
}

func TestProducer(t *testing.T) {
	convey.Convey("Given a producer over five items", t, func() {
		ctx := context.Background()
		q := &mockEnqueuer{}
		p := worker.NewProducer[int](q, ints(5), worker.WithName("p0"), worker.WithMetrics(nil))

		convey.Convey("When run to completion", func() {
			report, err := p.Run(ctx)

			convey.Convey("Then every item is enqueued in source order", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(report.Err, convey.ShouldBeNil)
				convey.So(report.Role, convey.ShouldEqual, "producer")
				convey.So(report.Name, convey.ShouldEqual, "p0")
				convey.So(report.Count, convey.ShouldEqual, 5)
				convey.So(q.snapshot(), convey.ShouldResemble, []int{1, 2, 3, 4, 5})
				convey.So(p.Count(), convey.ShouldEqual, 5)
			})
		})

		convey.Convey("When the queue is closed part way", func() {
			q.failAt = 2
			q.failWith = queue.ErrClosed
			report, err := p.Run(ctx)

			convey.Convey("Then it stops and reports the closed queue without failing", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(errors.Is(report.Err, queue.ErrClosed), convey.ShouldBeTrue)
				convey.So(report.Count, convey.ShouldEqual, 2)
				convey.So(q.snapshot(), convey.ShouldResemble, []int{1, 2})
			})
		})

		convey.Convey("When enqueue fails for another reason", func() {
			boom := errors.New("boom")
			q.failAt = 0
			q.failWith = boom
			report, err := p.Run(ctx)

			convey.Convey("Then the error is returned", func() {
				convey.So(errors.Is(err, boom), convey.ShouldBeTrue)
				convey.So(errors.Is(report.Err, boom), convey.ShouldBeTrue)
				convey.So(report.Count, convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When the context is already cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := p.Run(cctx)

			convey.Convey("Then nothing is enqueued", func() {
				convey.So(errors.Is(err, context.Canceled), convey.ShouldBeTrue)
				convey.So(q.snapshot(), convey.ShouldBeEmpty)
			})
		})
	})
}

func TestConsumer(t *testing.T) {
	convey.Convey("Given a queue holding three items that is then closed", t, func() {
		ctx := context.Background()
		q := newQueue[int](t, 4)
		for i := 1; i <= 3; i++ {
			convey.So(q.Enqueue(i), convey.ShouldBeNil)
		}
		q.Close()

		convey.Convey("When a consumer drains it into a collector", func() {
			sink := worker.NewCollector[int](3)
			c := worker.NewConsumer[int](q, sink, worker.WithName("c0"), worker.WithMetrics(nil))
			report, err := c.Run(ctx)

			convey.Convey("Then it receives every buffered item and finishes normally", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(report.Err, convey.ShouldBeNil)
				convey.So(report.Role, convey.ShouldEqual, "consumer")
				convey.So(report.Count, convey.ShouldEqual, 3)
				convey.So(sink.Snapshot(), convey.ShouldResemble, []int{1, 2, 3})
				convey.So(q.State(), convey.ShouldEqual, queue.Drained)
			})
		})

		convey.Convey("When the sink fails", func() {
			boom := errors.New("disk full")
			c := worker.NewConsumer[int](q, &failingSink{err: boom}, worker.WithMetrics(nil))
			report, err := c.Run(ctx)

			convey.Convey("Then the sink error is returned", func() {
				convey.So(errors.Is(err, boom), convey.ShouldBeTrue)
				convey.So(report.Count, convey.ShouldEqual, 0)
			})
		})
	})

	convey.Convey("Given an open empty queue", t, func() {
		q := newQueue[int](t, 1)
		sink := worker.NewCollector[int](0)
		c := worker.NewConsumer[int](q, sink, worker.WithMetrics(nil))

		convey.Convey("When the queue is closed while the consumer is blocked", func() {
			done := make(chan error, 1)
			go func() {
				_, err := c.Run(context.Background())
				done <- err
			}()

			time.Sleep(20 * time.Millisecond)
			q.Close()

			convey.Convey("Then the consumer returns without error", func() {
				select {
				case err := <-done:
					convey.So(err, convey.ShouldBeNil)
				case <-time.After(2 * time.Second):
					t.Fatal("consumer did not return after Close")
				}
				convey.So(sink.Len(), convey.ShouldEqual, 0)
			})
		})
	})
}

func TestProducerConsumerPipeline(t *testing.T) {
	convey.Convey("Given two producers and two consumers sharing a one-slot queue", t, func() {
		ctx := context.Background()
		q := newQueue[model.Item](t, 1)
		const perProducer = 200

		sinks := []*worker.Collector[model.Item]{
			worker.NewCollector[model.Item](perProducer),
			worker.NewCollector[model.Item](perProducer),
		}

		var consumers sync.WaitGroup
		for i, sink := range sinks {
			c := worker.NewConsumer[model.Item](q, sink, worker.WithName(fmt.Sprintf("c%d", i)), worker.WithMetrics(nil))
			consumers.Add(1)
			go func() {
				defer consumers.Done()
				_, _ = c.Run(ctx)
			}()
		}

		var producers sync.WaitGroup
		for i := range 2 {
			p := worker.NewProducer[model.Item](q, model.Sequence(i, perProducer), worker.WithMetrics(nil))
			producers.Add(1)
			go func() {
				defer producers.Done()
				_, _ = p.Run(ctx)
			}()
		}

		producers.Wait()
		q.Close()
		consumers.Wait()

		convey.Convey("Then every item arrives once and each producer's items stay ordered per consumer", func() {
			total := 0
			for _, sink := range sinks {
				got := sink.Snapshot()
				total += len(got)

				last := map[int]int{}
				for _, it := range got {
					convey.So(it.Seq, convey.ShouldBeGreaterThan, last[it.Producer])
					last[it.Producer] = it.Seq
				}
			}
			convey.So(total, convey.ShouldEqual, 2*perProducer)
		})
	})
}

func TestCollector(t *testing.T) {
	convey.Convey("Given a collector", t, func() {
		c := worker.NewCollector[string](-1)
		convey.So(c.Put(context.Background(), "a"), convey.ShouldBeNil)
		convey.So(c.Put(context.Background(), "b"), convey.ShouldBeNil)

		convey.Convey("Then snapshots are independent copies", func() {
			snap := c.Snapshot()
			snap[0] = "z"
			convey.So(c.Snapshot(), convey.ShouldResemble, []string{"a", "b"})
			convey.So(c.Len(), convey.ShouldEqual, 2)
		})
	})
}
