package service

import (
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okian/runboard/internal/adapters/lock"
	"github.com/okian/runboard/internal/adapters/repository"
	"github.com/okian/runboard/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the run store. The in-memory store is used otherwise.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithLocker sets the per-player lock. An in-process lock is used otherwise.
func WithLocker(l lock.Locker) Option {
	return func(s *Service) {
		if l != nil {
			s.locker = l
		}
	}
}

// WithWorkerCount sets the number of recompute workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the recompute queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize bounds the set of players with a pending recompute.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithBatchSize sets how many runs are written per store call.
func WithBatchSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.batchSize = size
		}
	}
}

// WithSweepRate throttles full recalculations to r items per second.
func WithSweepRate(r float64, burst int) Option {
	return func(s *Service) {
		s.sweepRate = r
		s.sweepBurst = burst
	}
}

// WithDurableJobs routes cascaded recomputes through River on pool instead
// of the in-memory queue.
func WithDurableJobs(pool *pgxpool.Pool, maxWorkers int) Option {
	return func(s *Service) {
		s.jobsPool = pool
		if maxWorkers > 0 {
			s.jobsWorkers = maxWorkers
		}
	}
}

// WithInlineCascade recomputes cascaded players before a transition returns.
func WithInlineCascade() Option {
	return func(s *Service) {
		s.inline = true
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}
