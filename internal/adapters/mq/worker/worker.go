// Package worker drains the recompute queue and rebuilds player totals.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/okian/runboard/internal/adapters/mq/queue"
	"github.com/okian/runboard/internal/domain/aggregate"
	"github.com/okian/runboard/internal/domain/dedupe"
	"github.com/okian/runboard/internal/domain/model"
	"github.com/okian/runboard/pkg/logger"
	"github.com/okian/runboard/pkg/metrics"
)

const (
	defaultWorkerMultiplier = 2 // multiplier for runtime.NumCPU()
	poolShutdownTimeout     = 30 * time.Second
)

// Recomputer rebuilds a player's totals.
type Recomputer interface {
	Recompute(ctx context.Context, playerID string, hints ...aggregate.Hint) (aggregate.Result, error)
}

// Queue defines how workers receive requests.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Request
}

// Worker processes recompute requests.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown stops the worker after the request in hand.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker on a Queue.
type InMemoryWorker struct {
	queue   Queue
	agg     Recomputer
	pending dedupe.Pending
	name    string
	active  *atomic.Int64

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, agg Recomputer, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		agg:      agg,
		name:     "worker",
		active:   &atomic.Int64{},
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	requests := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case req, ok := <-requests:
			if !ok {
				return
			}
			if err := w.process(ctx, req); err != nil {
				w.logger.Error(ctx, "error processing recompute", logger.Error(err))
			}
		}
	}
}

// Shutdown stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	close(w.shutdown)
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// process handles a single request. The player is released before the
// recompute starts so a change arriving meanwhile schedules another pass.
func (w *InMemoryWorker) process(ctx context.Context, req queue.Request) error {
	start := time.Now()
	metrics.UpdateWorkerActiveCount(int(w.active.Add(1)))
	defer func() {
		metrics.UpdateWorkerActiveCount(int(w.active.Add(-1)))
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	if w.pending != nil {
		w.pending.Release(ctx, req.PlayerID)
	}

	res, err := w.agg.Recompute(ctx, req.PlayerID)
	switch {
	case err == nil:
	case errors.Is(err, model.ErrNotFound):
		// The player was deleted after the request was queued.
		w.logger.Debug(ctx, "dropping recompute of unknown player", logger.String("player", req.PlayerID))
		return nil
	case errors.Is(err, model.ErrPartialBatch):
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "partial_batch")
		w.logger.Warn(ctx, "recompute partially applied",
			logger.String("player", req.PlayerID),
			logger.Strings("failed", res.Batch.Failed),
			logger.Error(err))
		return nil
	default:
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "recompute_error")
		return fmt.Errorf("recompute %s (%s): %w", req.PlayerID, req.Reason, err)
	}

	w.logger.Debug(ctx, "recomputed",
		logger.String("player", req.PlayerID),
		logger.String("reason", req.Reason),
		logger.Duration("queued", start.Sub(req.RequestedAt)))
	return nil
}

// Pool manages multiple workers sharing one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	logger  logger.Logger
}

// NewPool creates a worker pool. A non-positive count defaults to twice
// the CPU count.
func NewPool(workerCount int, q Queue, agg Recomputer, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Get().Named("worker-pool"),
	}
	active := &atomic.Int64{}
	for i := range workerCount {
		w := NewInMemoryWorker(q, agg, append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)...)
		w.active = active
		pool.workers[i] = w
	}

	metrics.UpdateWorkerCount(workerCount)
	metrics.UpdateWorkerActiveCount(0)
	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Shutdown closes the queue, lets workers drain it and waits for them.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut bool
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			timedOut = true
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	if timedOut {
		return fmt.Errorf("worker pool shutdown: %w", shutdownCtx.Err())
	}
	return nil
}
