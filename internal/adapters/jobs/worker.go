package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/riverqueue/river"

	"github.com/okian/runboard/internal/domain/aggregate"
	"github.com/okian/runboard/internal/domain/model"
	"github.com/okian/runboard/pkg/logger"
	"github.com/okian/runboard/pkg/metrics"
)

// Recomputer rebuilds a player's totals.
type Recomputer interface {
	Recompute(ctx context.Context, playerID string, hints ...aggregate.Hint) (aggregate.Result, error)
}

// RecomputeWorker runs recompute_player jobs.
type RecomputeWorker struct {
	river.WorkerDefaults[RecomputePlayerArgs]
	agg    Recomputer
	logger logger.Logger
}

// NewRecomputeWorker creates the worker.
func NewRecomputeWorker(agg Recomputer, l logger.Logger) *RecomputeWorker {
	return &RecomputeWorker{agg: agg, logger: l}
}

// Work recomputes the job's player. A missing player cancels the job;
// other failures are retried by River.
func (w *RecomputeWorker) Work(ctx context.Context, job *river.Job[RecomputePlayerArgs]) error {
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	playerID := job.Args.PlayerID
	_, err := w.agg.Recompute(ctx, playerID)
	switch {
	case err == nil:
		w.logger.Debug(ctx, "recompute job done",
			logger.String("player", playerID),
			logger.Int64("job_id", job.ID),
			logger.Int("attempt", job.Attempt))
		return nil
	case errors.Is(err, model.ErrNotFound):
		w.logger.Warn(ctx, "cancelling recompute of unknown player", logger.String("player", playerID))
		return river.JobCancel(err)
	default:
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("jobs", "recompute_error")
		return fmt.Errorf("recompute %s: %w", playerID, err)
	}
}
