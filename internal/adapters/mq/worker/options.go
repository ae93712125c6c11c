// Package worker implements the producer and consumer roles that drive a queue.
package worker

import (
	"github.com/okian/handoff/pkg/logger"
	"github.com/okian/handoff/pkg/metrics"
)

// Option applies a configuration option to a Producer or Consumer.
type Option func(*roleConfig)

type roleConfig struct {
	name       string
	logger     logger.Logger
	metrics    *metrics.Manager
	metricsSet bool
}

// WithName sets the role name for identification, logging and metrics.
func WithName(name string) Option {
	return func(c *roleConfig) {
		if name != "" {
			c.name = name
		}
	}
}

// WithLogger sets a custom logger for the role.
func WithLogger(logger logger.Logger) Option {
	return func(c *roleConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics sets the metrics manager; nil disables recording.
func WithMetrics(m *metrics.Manager) Option {
	return func(c *roleConfig) {
		c.metrics = m
		c.metricsSet = true
	}
}

func newRoleConfig(defaultName string, opts []Option) roleConfig {
	c := roleConfig{name: defaultName}
	for _, opt := range opts {
		opt(&c)
	}
	if c.logger == nil {
		c.logger = logger.Get()
	}
	c.logger = c.logger.Named(c.name)
	if !c.metricsSet {
		c.metrics = metrics.Global()
	}
	return c
}
