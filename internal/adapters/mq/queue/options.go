// Package queue implements a bounded, blocking FIFO shared by producers and consumers.
package queue

import "github.com/okian/handoff/pkg/metrics"

// Option applies a configuration option to a BoundedQueue.
type Option func(*options)

type options struct {
	name    string
	metrics *metrics.Manager
}

// WithName sets the queue label used in metrics.
func WithName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.name = name
		}
	}
}

// WithMetrics sets the metrics manager; nil disables recording.
func WithMetrics(m *metrics.Manager) Option {
	return func(o *options) {
		o.metrics = m
	}
}
