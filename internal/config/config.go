// Package config defines service configuration structures and loading hooks.
//
// Values layer as defaults, then an optional YAML file named by
// RUNBOARD_CONFIG, then RUNBOARD_* environment variables. Nested keys use a
// double underscore in env names, e.g. RUNBOARD_STORE__DSN.
package config

import (
	"runtime"
	"time"

	"github.com/okian/runboard/internal/domain/model"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects json or text output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the in-memory recompute queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of recompute workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize caps the set of players with a pending recompute.
	DedupeSize int `koanf:"dedupe_size"`

	// BatchSize caps the writes per batched run update.
	BatchSize int `koanf:"batch_size"`

	Store  StoreConfig  `koanf:"store"`
	Redis  RedisConfig  `koanf:"redis"`
	Jobs   JobsConfig   `koanf:"jobs"`
	Auth   AuthConfig   `koanf:"auth"`
	Sweep  SweepConfig  `koanf:"sweep"`
	Submit SubmitConfig `koanf:"submit"`

	// Points seeds the points configuration of a fresh store.
	Points model.PointsConfig `koanf:"points"`
}

// StoreConfig selects and tunes the persistence backend.
type StoreConfig struct {
	Backend  string `koanf:"backend"`
	DSN      string `koanf:"dsn"`
	MaxConns int32  `koanf:"max_conns"`
}

// RedisConfig enables the distributed per-group lock when Addr is set.
type RedisConfig struct {
	Addr     string        `koanf:"addr"`
	Password string        `koanf:"password"`
	DB       int           `koanf:"db"`
	LockTTL  time.Duration `koanf:"lock_ttl"`
}

// JobsConfig switches recomputes onto the durable Postgres job queue.
type JobsConfig struct {
	Durable    bool `koanf:"durable"`
	MaxWorkers int  `koanf:"max_workers"`
}

// AuthConfig holds the JWT verification settings. An empty secret disables
// every protected route.
type AuthConfig struct {
	JWTSecret string `koanf:"jwt_secret"`
	Issuer    string `koanf:"issuer"`
}

// SweepConfig paces the full recalculation.
type SweepConfig struct {
	Rate  float64 `koanf:"rate"`
	Burst int     `koanf:"burst"`
}

// SubmitConfig rate limits run submissions per client IP.
type SubmitConfig struct {
	RatePerSecond float64 `koanf:"rate_per_second"`
	Burst         int     `koanf:"burst"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:    "info",
		LogFormat:   "json",
		Addr:        ":9080",
		QueueSize:   10_000,
		WorkerCount: runtime.NumCPU() * 2,
		DedupeSize:  100_000,
		BatchSize:   500,
		Store: StoreConfig{
			Backend:  BackendMemory,
			MaxConns: 10,
		},
		Redis: RedisConfig{
			LockTTL: 30 * time.Second,
		},
		Jobs: JobsConfig{
			MaxWorkers: 10,
		},
		Auth: AuthConfig{
			Issuer: "runboard",
		},
		Sweep: SweepConfig{
			Rate:  50,
			Burst: 10,
		},
		Submit: SubmitConfig{
			RatePerSecond: 1,
			Burst:         5,
		},
		Points: model.DefaultPointsConfig(),
	}
}
