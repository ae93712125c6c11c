// Package config defines the harness configuration and how it is loaded.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - External errors are wrapped with this package's sentinels.
package config

import (
	"fmt"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Producers is the number of producer goroutines. Zero is a valid, empty run.
	Producers int `koanf:"producers"`

	// Consumers is the number of consumer goroutines. Zero only when nothing is produced.
	Consumers int `koanf:"consumers"`

	// Capacity bounds the queue.
	Capacity int `koanf:"capacity"`

	// ItemsPerProducer is how many items each producer emits.
	ItemsPerProducer int `koanf:"items_per_producer"`

	// MetricsAddr enables the ops HTTP server when non-empty, e.g. ":9090".
	MetricsAddr string `koanf:"metrics_addr"`

	// RunTimeout aborts the run after this long; zero disables the limit.
	RunTimeout time.Duration `koanf:"run_timeout"`
}

// New creates a Config with defaults: one producer, one consumer, a
// one-slot queue and ten items.
func New() *Config {
	return &Config{
		LogLevel:         "info",
		LogFormat:        "text",
		Producers:        1,
		Consumers:        1,
		Capacity:         1,
		ItemsPerProducer: 10,
	}
}

// Validate reports the first invalid field, wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	switch {
	case c.Producers < 0:
		return fmt.Errorf("%w: producers must not be negative, got %d", ErrInvalidConfig, c.Producers)
	case c.Consumers < 0:
		return fmt.Errorf("%w: consumers must not be negative, got %d", ErrInvalidConfig, c.Consumers)
	case c.Consumers == 0 && c.Producers*c.ItemsPerProducer > 0:
		return fmt.Errorf("%w: consumers must be at least 1 when items are produced", ErrInvalidConfig)
	case c.Capacity < 1:
		return fmt.Errorf("%w: capacity must be at least 1, got %d", ErrInvalidConfig, c.Capacity)
	case c.ItemsPerProducer < 0:
		return fmt.Errorf("%w: items_per_producer must not be negative, got %d", ErrInvalidConfig, c.ItemsPerProducer)
	case c.RunTimeout < 0:
		return fmt.Errorf("%w: run_timeout must not be negative, got %s", ErrInvalidConfig, c.RunTimeout)
	case c.LogFormat != "text" && c.LogFormat != "json":
		return fmt.Errorf("%w: log_format must be text or json, got %q", ErrInvalidConfig, c.LogFormat)
	}
	return nil
}
