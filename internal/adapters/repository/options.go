package repository

import (
	"time"

	"github.com/okian/runboard/internal/domain/model"
)

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithMetricsUpdateInterval sets the interval for background gauge updates.
func WithMetricsUpdateInterval(interval time.Duration) Option {
	return func(s *MemoryStore) {
		if interval > 0 {
			s.metricsUpdateInterval = interval
		}
	}
}

// WithPointsConfig replaces the initial points configuration.
func WithPointsConfig(cfg model.PointsConfig) Option {
	return func(s *MemoryStore) {
		s.points = cfg
	}
}
