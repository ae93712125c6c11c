// Package service runs producers and consumers against one bounded queue and
// verifies what came out.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/okian/handoff/internal/adapters/mq/queue"
	"github.com/okian/handoff/internal/adapters/mq/worker"
	"github.com/okian/handoff/internal/domain/model"
	"github.com/okian/handoff/internal/verify"
	"github.com/okian/handoff/pkg/logger"
	"github.com/okian/handoff/pkg/metrics"
)

const queueName = "handoff"

// maxSinkPrealloc bounds the slice each collector reserves up front.
const maxSinkPrealloc = 1 << 16

// Run results recorded to metrics.
const (
	resultOK        = "ok"
	resultFailed    = "failed"
	resultError     = "error"
	resultCancelled = "cancelled"
)

// Report describes a finished run.
type Report struct {
	RunID            string
	Producers        int
	Consumers        int
	Capacity         int
	ItemsPerProducer int
	Produced         int
	Consumed         int
	Duration         time.Duration
	// Streams holds what each consumer received, in arrival order.
	Streams         [][]model.Item
	ProducerReports []worker.Report
	ConsumerReports []worker.Report
	Verification    verify.Result
}

// Service owns the harness configuration and the state of the active run.
type Service struct {
	mu sync.RWMutex

	// Configuration
	producers        int
	consumers        int
	capacity         int
	itemsPerProducer int

	// State
	running bool
	runs    int
	lastOK  bool
	current *run

	logger  logger.Logger
	metrics *metrics.Manager
}

// run holds the queue and roles of one Run call.
type run struct {
	id        string
	queue     *queue.BoundedQueue[model.Item]
	producers []*worker.Producer[model.Item]
	consumers []*worker.Consumer[model.Item]
	sinks     []*worker.Collector[model.Item]
}

// New constructs a Service. Defaults to one producer, one consumer, a
// one-slot queue and ten items per producer.
func New(opts ...Option) *Service {
	s := &Service{
		producers:        1,
		consumers:        1,
		capacity:         1,
		itemsPerProducer: 10,
		metrics:          metrics.Global(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Run performs one complete handoff: consumers start first, producers emit
// their sequences, the queue is closed once every producer has finished and
// the consumers drain it. The collected streams are then verified.
//
// Cancelling ctx closes the queue so blocked roles return; Run then reports
// the context error. A verification failure is returned wrapped in
// ErrVerification alongside the full report.
func (s *Service) Run(ctx context.Context) (*Report, error) {
	start := time.Now()

	r, err := s.begin()
	if err != nil {
		return nil, err
	}
	ok := false
	defer func() { s.end(ok) }()

	log := s.logger.Named("run")
	runID := logger.String("runID", r.id)
	log.Info(ctx, "starting run", runID,
		logger.Int("producers", s.producers),
		logger.Int("consumers", s.consumers),
		logger.Int("capacity", s.capacity),
		logger.Int("itemsPerProducer", s.itemsPerProducer),
	)

	g, gctx := errgroup.WithContext(ctx)
	// Close is the only way to release roles blocked inside the queue.
	stop := context.AfterFunc(gctx, r.queue.Close)
	defer stop()

	consumerReports := make([]worker.Report, len(r.consumers))
	for i, c := range r.consumers {
		g.Go(func() error {
			rep, err := c.Run(gctx)
			consumerReports[i] = rep
			return err
		})
	}

	producerReports := make([]worker.Report, len(r.producers))
	var producing sync.WaitGroup
	for i, p := range r.producers {
		producing.Add(1)
		g.Go(func() error {
			defer producing.Done()
			rep, err := p.Run(gctx)
			producerReports[i] = rep
			return err
		})
	}

	g.Go(func() error {
		producing.Wait()
		r.queue.Close()
		log.Debug(ctx, "producers finished, queue closed", runID, logger.Int("buffered", r.queue.Len()))
		return nil
	})

	runErr := g.Wait()

	report := &Report{
		RunID:            r.id,
		Producers:        s.producers,
		Consumers:        s.consumers,
		Capacity:         s.capacity,
		ItemsPerProducer: s.itemsPerProducer,
		Streams:          make([][]model.Item, len(r.sinks)),
		ProducerReports:  producerReports,
		ConsumerReports:  consumerReports,
	}
	for i, sink := range r.sinks {
		report.Streams[i] = sink.Snapshot()
	}
	for _, rep := range producerReports {
		report.Produced += rep.Count
	}
	for _, rep := range consumerReports {
		report.Consumed += rep.Count
	}

	if runErr == nil {
		runErr = ctx.Err()
	}
	if runErr != nil {
		report.Duration = time.Since(start)
		result := resultError
		if ctx.Err() != nil {
			result = resultCancelled
		}
		s.metrics.RecordRun(result, report.Duration.Seconds())
		log.Error(ctx, "run aborted", runID, logger.Error(runErr),
			logger.Int("produced", report.Produced),
			logger.Int("consumed", report.Consumed))
		return report, fmt.Errorf("run %s: %w", r.id, runErr)
	}

	report.Verification = verify.Check(verify.Config{
		Producers:        s.producers,
		ItemsPerProducer: s.itemsPerProducer,
	}, report.Streams)
	report.Duration = time.Since(start)

	if !report.Verification.OK() {
		s.metrics.RecordRun(resultFailed, report.Duration.Seconds())
		log.Error(ctx, "verification failed", runID, logger.Error(report.Verification.Err))
		return report, fmt.Errorf("run %s: %w: %w", r.id, ErrVerification, report.Verification.Err)
	}

	ok = true
	s.metrics.RecordRun(resultOK, report.Duration.Seconds())
	log.Info(ctx, "run verified", runID,
		logger.Int("produced", report.Produced),
		logger.Int("consumed", report.Consumed),
		logger.Duration("duration", report.Duration),
	)
	return report, nil
}

// Stop closes the active run's queue. Producers stop early, so the run
// fails verification unless every item was already enqueued.
func (s *Service) Stop() {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.running && s.current != nil {
		s.current.queue.Close()
	}
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"running":          s.running,
		"runs":             s.runs,
		"producers":        s.producers,
		"consumers":        s.consumers,
		"capacity":         s.capacity,
		"itemsPerProducer": s.itemsPerProducer,
	}

	if r := s.current; r != nil {
		produced, consumed := 0, 0
		for _, p := range r.producers {
			produced += p.Count()
		}
		for _, c := range r.consumers {
			consumed += c.Count()
		}
		waitingProducers, waitingConsumers := r.queue.Waiting()

		stats["runID"] = r.id
		stats["queueLength"] = r.queue.Len()
		stats["queueState"] = r.queue.State().String()
		stats["produced"] = produced
		stats["consumed"] = consumed
		stats["waitingProducers"] = waitingProducers
		stats["waitingConsumers"] = waitingConsumers
		if !s.running {
			stats["lastRunOK"] = s.lastOK
		}
	}

	return stats
}

// begin builds the queue and roles for a new run.
func (s *Service) begin() (*run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil, ErrAlreadyRunning
	}
	if s.consumers == 0 && s.producers*s.itemsPerProducer > 0 {
		return nil, fmt.Errorf("%w: %d producers x %d items", ErrNoConsumers, s.producers, s.itemsPerProducer)
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}

	q, err := queue.New[model.Item](s.capacity,
		queue.WithName(queueName),
		queue.WithMetrics(s.metrics),
	)
	if err != nil {
		return nil, err
	}

	r := &run{
		id:        uuid.NewString(),
		queue:     q,
		producers: make([]*worker.Producer[model.Item], s.producers),
		consumers: make([]*worker.Consumer[model.Item], s.consumers),
		sinks:     make([]*worker.Collector[model.Item], s.consumers),
	}

	for i := range s.consumers {
		r.sinks[i] = worker.NewCollector[model.Item](min(s.itemsPerProducer*s.producers/s.consumers, maxSinkPrealloc))
		r.consumers[i] = worker.NewConsumer[model.Item](q, r.sinks[i],
			worker.WithName(fmt.Sprintf("consumer-%d", i)),
			worker.WithLogger(s.logger),
			worker.WithMetrics(s.metrics),
		)
	}

	for i := range s.producers {
		r.producers[i] = worker.NewProducer[model.Item](q, model.Sequence(i, s.itemsPerProducer),
			worker.WithName(fmt.Sprintf("producer-%d", i)),
			worker.WithLogger(s.logger),
			worker.WithMetrics(s.metrics),
		)
	}

	s.current = r
	s.running = true
	s.lastOK = false
	return r, nil
}

func (s *Service) end(ok bool) {
	s.mu.Lock()
	s.running = false
	s.lastOK = ok
	s.runs++
	s.mu.Unlock()
}
