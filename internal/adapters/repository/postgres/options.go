package postgres

import (
	"github.com/okian/runboard/internal/domain/model"
	"github.com/okian/runboard/pkg/logger"
)

// Option configures a Store.
type Option func(*Store)

// WithMaxConns caps the pool size when the store opens its own pool.
func WithMaxConns(n int32) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxConns = n
		}
	}
}

// WithDefaultPointsConfig sets the configuration returned before one is stored.
func WithDefaultPointsConfig(cfg model.PointsConfig) Option {
	return func(s *Store) {
		s.defaultPoints = cfg
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}
