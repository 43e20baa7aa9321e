package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix = "RUNBOARD_"
	envFile   = "RUNBOARD_CONFIG"
)

// Load builds a Config by layering defaults, the file named by
// RUNBOARD_CONFIG and RUNBOARD_* env vars, in that order of precedence.
func Load(ctx context.Context) (*Config, error) {
	return LoadFile(ctx, os.Getenv(envFile))
}

// LoadFile is Load with an explicit file path; an empty path skips the file.
func LoadFile(_ context.Context, path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, errors.Join(ErrLoadConfig, err)
		}
	}

	// RUNBOARD_STORE__DSN -> store.dsn; single underscores stay inside keys.
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
		return strings.ReplaceAll(s, "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, errors.Join(ErrLoadConfig, err)
	}

	cfg := New()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, errors.Join(ErrLoadConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first inconsistent setting.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.WorkerCount <= 0:
		return fmt.Errorf("%w: worker_count must be positive", ErrInvalidConfig)
	case c.QueueSize <= 0:
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	case c.BatchSize <= 0:
		return fmt.Errorf("%w: batch_size must be positive", ErrInvalidConfig)
	}
	switch c.Store.Backend {
	case BackendMemory:
		if c.Jobs.Durable {
			return fmt.Errorf("%w: durable jobs need the postgres backend", ErrInvalidConfig)
		}
	case BackendPostgres:
		if c.Store.DSN == "" {
			return fmt.Errorf("%w: store.dsn is required for postgres", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown store backend %q", ErrInvalidConfig, c.Store.Backend)
	}
	if c.Sweep.Rate < 0 || c.Submit.RatePerSecond < 0 {
		return fmt.Errorf("%w: rates must not be negative", ErrInvalidConfig)
	}
	p := c.Points
	if p.BaseMultiplier < 0 || p.FirstPlaceBonus < 0 || p.SecondPlaceBonus < 0 ||
		p.ThirdPlaceBonus < 0 || p.ThresholdBonus < 0 {
		return fmt.Errorf("%w: points values must not be negative", ErrInvalidConfig)
	}
	if !p.BonusesOrdered() {
		return fmt.Errorf("%w: place bonuses must decrease from first to third", ErrInvalidConfig)
	}
	return nil
}
