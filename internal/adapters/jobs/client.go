// Package jobs runs player recomputes as durable River jobs on Postgres.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/riverqueue/river/rivertype"

	"github.com/okian/runboard/internal/domain/model"
	"github.com/okian/runboard/pkg/logger"
	"github.com/okian/runboard/pkg/metrics"
)

// ErrNotStarted is returned when the client is stopped before being started.
var ErrNotStarted = errors.New("jobs client not started")

const defaultMaxWorkers = 10

// Client schedules recompute jobs and, once started, works them.
type Client struct {
	client     *river.Client[pgx.Tx]
	logger     logger.Logger
	maxWorkers int
	started    bool
}

// Option configures a Client.
type Option func(*Client)

// WithMaxWorkers sets how many recompute jobs run concurrently.
func WithMaxWorkers(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxWorkers = n
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a River client on pool with the recompute worker registered.
func New(pool *pgxpool.Pool, agg Recomputer, opts ...Option) (*Client, error) {
	c := &Client{
		logger:     logger.Get().Named("jobs"),
		maxWorkers: defaultMaxWorkers,
	}
	for _, opt := range opts {
		opt(c)
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, NewRecomputeWorker(agg, c.logger))

	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			QueueRecompute: {MaxWorkers: c.maxWorkers},
		},
		Workers: workers,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create River client: %w", err)
	}
	c.client = client
	return c, nil
}

// Migrate brings the River schema up to date.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		return fmt.Errorf("failed to create river migrator: %w", err)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, &rivermigrate.MigrateOpts{}); err != nil {
		return fmt.Errorf("failed to migrate river schema: %w", err)
	}
	return nil
}

// Start begins working jobs.
func (c *Client) Start(ctx context.Context) error {
	if err := c.client.Start(ctx); err != nil {
		return fmt.Errorf("failed to start River client: %w", err)
	}
	c.started = true
	c.logger.Info(ctx, "jobs client started", logger.Int("max_workers", c.maxWorkers))
	return nil
}

// Stop waits for running jobs to finish.
func (c *Client) Stop(ctx context.Context) error {
	if !c.started {
		return ErrNotStarted
	}
	if err := c.client.Stop(ctx); err != nil {
		return fmt.Errorf("failed to stop River client: %w", err)
	}
	return nil
}

// Schedule inserts a recompute job. While an identical job is waiting the
// insert is skipped; while one is running a single follow-up job is queued
// so the change is not lost.
func (c *Client) Schedule(ctx context.Context, req model.RecomputeRequest) error {
	args := RecomputePlayerArgs{PlayerID: req.PlayerID, Reason: req.Reason}
	res, err := c.client.Insert(ctx, args, nil)
	if err != nil {
		metrics.RecordQueueEnqueueError()
		return fmt.Errorf("insert recompute job for %s: %w", req.PlayerID, err)
	}
	if !res.UniqueSkippedAsDuplicate {
		metrics.RecordQueueEnqueue()
		return nil
	}
	metrics.RecordPendingDuplicate()
	if res.Job == nil || res.Job.State != rivertype.JobStateRunning {
		return nil
	}

	args.FollowUp = true
	opts := args.InsertOpts()
	opts.ScheduledAt = time.Now().Add(followUpDelay)
	if _, err := c.client.Insert(ctx, args, &opts); err != nil {
		metrics.RecordQueueEnqueueError()
		return fmt.Errorf("insert follow-up recompute job for %s: %w", req.PlayerID, err)
	}
	metrics.RecordQueueEnqueue()
	return nil
}
