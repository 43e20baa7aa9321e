// Package service wires the store, aggregator, lifecycle machine and
// recompute queue into the operations served by the HTTP API and the CLI.
package service

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okian/runboard/internal/adapters/jobs"
	"github.com/okian/runboard/internal/adapters/lock"
	"github.com/okian/runboard/internal/adapters/mq/queue"
	"github.com/okian/runboard/internal/adapters/mq/worker"
	"github.com/okian/runboard/internal/adapters/repository"
	"github.com/okian/runboard/internal/domain/aggregate"
	"github.com/okian/runboard/internal/domain/dedupe"
	"github.com/okian/runboard/internal/domain/lifecycle"
	"github.com/okian/runboard/internal/domain/sweep"
	"github.com/okian/runboard/pkg/logger"
	"github.com/okian/runboard/pkg/metrics"
)

const tracerName = "github.com/okian/runboard/internal/app"

// Service implements the API dependencies for the leaderboard system.
type Service struct {
	mu sync.RWMutex

	// Core components
	store     repository.Store
	locker    lock.Locker
	agg       *aggregate.Aggregator
	machine   *lifecycle.Machine
	sweeper   *sweep.Sweeper
	pending   *dedupe.Set
	queue     *queue.InMemoryQueue
	pool      *worker.Pool
	jobs      *jobs.Client
	scheduler lifecycle.Scheduler

	// Configuration
	workerCount int
	queueSize   int
	dedupeSize  int
	batchSize   int
	sweepRate   float64
	sweepBurst  int
	jobsPool    *pgxpool.Pool
	jobsWorkers int
	inline      bool

	// State
	started     bool
	sweepMu     sync.Mutex
	sweepCancel context.CancelFunc
	sweepDone   chan struct{}

	logger logger.Logger
	tracer trace.Tracer
	now    func() time.Time
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount: runtime.NumCPU(),
		queueSize:   10_000,
		dedupeSize:  50_000,
		batchSize:   aggregate.DefaultBatchSize,
		jobsWorkers: runtime.NumCPU(),
		tracer:      otel.Tracer(tracerName),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.logger.Info(ctx, "starting runboard service...")

	if s.store == nil {
		s.store = repository.NewMemoryStore(ctx)
		s.logger.Info(ctx, "using in-memory store")
	}
	if s.locker == nil {
		s.locker = lock.NewLocal()
	}
	s.agg = aggregate.New(s.store,
		aggregate.WithLocker(s.locker),
		aggregate.WithBatchSize(s.batchSize),
		aggregate.WithLogger(s.logger.Named("aggregate")),
	)

	if err := s.startScheduler(ctx); err != nil {
		return err
	}

	machineOpts := []lifecycle.Option{
		lifecycle.WithLogger(s.logger.Named("lifecycle")),
		lifecycle.WithClock(s.now),
	}
	if s.scheduler != nil {
		machineOpts = append(machineOpts, lifecycle.WithScheduler(s.scheduler))
	}
	s.machine = lifecycle.New(s.store, s.agg, machineOpts...)
	s.sweeper = sweep.New(s.store, s.agg,
		sweep.WithRate(s.sweepRate, s.sweepBurst),
		sweep.WithLogger(s.logger.Named("sweep")),
		sweep.WithClock(s.now),
	)

	s.started = true
	s.logger.Info(ctx, "runboard service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Bool("durableJobs", s.jobs != nil),
		logger.Bool("inlineCascade", s.inline),
	)
	return nil
}

func (s *Service) startScheduler(ctx context.Context) error {
	switch {
	case s.inline:
		return nil
	case s.jobsPool != nil:
		client, err := jobs.New(s.jobsPool, s.agg,
			jobs.WithMaxWorkers(s.jobsWorkers),
			jobs.WithLogger(s.logger.Named("jobs")),
		)
		if err != nil {
			return fmt.Errorf("create job client: %w", err)
		}
		if err := client.Start(ctx); err != nil {
			return fmt.Errorf("start job client: %w", err)
		}
		s.jobs = client
		s.scheduler = client
	default:
		s.pending = dedupe.NewSet(dedupe.WithMaxSize(s.dedupeSize))
		s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
		s.pool = worker.NewPool(s.workerCount, s.queue, s.agg,
			worker.WithPending(s.pending),
			worker.WithLogger(s.logger.Named("worker")),
		)
		// Workers outlive the start request.
		s.pool.Start(context.WithoutCancel(ctx))
		s.scheduler = queue.NewScheduler(s.queue, s.pending)
	}
	return nil
}

// Stop gracefully shuts down the service. Queued recomputes are drained
// before the store closes.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	s.logger.Info(ctx, "stopping runboard service...")

	s.sweepMu.Lock()
	cancelSweep, sweepDone := s.sweepCancel, s.sweepDone
	s.sweepMu.Unlock()
	if cancelSweep != nil {
		cancelSweep()
		<-sweepDone
	}
	if s.pool != nil {
		if err := s.pool.Shutdown(ctx); err != nil {
			s.logger.Warn(ctx, "worker pool did not drain", logger.Error(err))
		}
	}
	if s.jobs != nil {
		if err := s.jobs.Stop(ctx); err != nil {
			s.logger.Warn(ctx, "job client did not stop cleanly", logger.Error(err))
		}
	}
	if err := s.store.Close(); err != nil {
		s.logger.Warn(ctx, "closing store failed", logger.Error(err))
	}

	s.started = false
	s.logger.Info(ctx, "runboard service stopped")
}

// ready returns the components of a started service.
func (s *Service) ready() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"durableJobs": s.jobs != nil,
	}
	if !s.started {
		return stats
	}

	if s.queue != nil {
		queueLen := s.queue.Len(ctx)
		stats["queueLength"] = queueLen
		stats["pending"] = s.pending.Size()
		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateWorkerCount(s.pool.Size())
	}
	stats["sweepRunning"] = s.sweeper.Running()

	st, err := s.store.Stats(ctx)
	if err != nil {
		stats["storeError"] = err.Error()
		return stats
	}
	stats["runs"] = st.Runs
	stats["verifiedRuns"] = st.Verified
	stats["players"] = st.Players
	stats["groups"] = st.Groups
	return stats
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
