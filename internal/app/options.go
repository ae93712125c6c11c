package service

import (
	"github.com/okian/handoff/pkg/logger"
	"github.com/okian/handoff/pkg/metrics"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithProducers sets the number of producer goroutines. Zero yields a run
// that closes the queue immediately.
func WithProducers(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.producers = n
		}
	}
}

// WithConsumers sets the number of consumer goroutines. Zero is only
// runnable when nothing is produced.
func WithConsumers(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.consumers = n
		}
	}
}

// WithCapacity sets the queue capacity.
func WithCapacity(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.capacity = n
		}
	}
}

// WithItemsPerProducer sets how many items each producer emits.
// Zero is allowed and yields an empty run.
func WithItemsPerProducer(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.itemsPerProducer = n
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics sets the metrics manager; nil disables recording.
func WithMetrics(m *metrics.Manager) Option {
	return func(s *Service) {
		s.metrics = m
	}
}
