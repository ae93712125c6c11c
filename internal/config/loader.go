package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix  = "HANDOFF_"
	envConfig  = envPrefix + "CONFIG"
	keyDelimit = "."
)

// Load builds a Config with Read and validates it.
func Load(ctx context.Context) (*Config, error) {
	cfg, err := Read(ctx)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read builds a Config by layering defaults, optional file, and env vars
// without validating it, so callers can apply further overrides first.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if HANDOFF_CONFIG is set
//  3. env (prefix HANDOFF_)
func Read(_ context.Context) (*Config, error) {
	base := New()

	k := koanf.New(keyDelimit)

	if path := os.Getenv(envConfig); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// HANDOFF_ITEMS_PER_PRODUCER -> items_per_producer (flat keys).
	envProvider := env.Provider(envPrefix, keyDelimit, func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, strings.ToLower(envPrefix))
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(cfg.LogFormat))

	return &cfg, nil
}
