// Package sweep rebuilds every derived standing in the store: each group is
// re-ranked, then each player's totals are recomputed. Progress is
// checkpointed after every item so an interrupted sweep can resume.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/okian/runboard/internal/domain/aggregate"
	"github.com/okian/runboard/internal/domain/grouping"
	"github.com/okian/runboard/internal/domain/model"
	"github.com/okian/runboard/pkg/logger"
	"github.com/okian/runboard/pkg/metrics"
)

// DefaultCheckpoint is the checkpoint name used unless overridden.
const DefaultCheckpoint = "sweep"

// Phases in execution order.
const (
	PhaseGroups  = "groups"
	PhasePlayers = "players"
)

// Store is the part of the run store a sweep reads and checkpoints into.
type Store interface {
	FindRuns(ctx context.Context, filter model.RunFilter) ([]model.Run, error)
	ListPlayers(ctx context.Context) ([]model.Player, error)
	GetCheckpoint(ctx context.Context, name string) (model.Checkpoint, error)
	PutCheckpoint(ctx context.Context, name string, cp model.Checkpoint) error
	DeleteCheckpoint(ctx context.Context, name string) error
}

// Recomputer rebuilds the standings of one group or one player.
type Recomputer interface {
	Recompute(ctx context.Context, playerID string, hints ...aggregate.Hint) (aggregate.Result, error)
	RankGroup(ctx context.Context, key grouping.Key, hints ...aggregate.Hint) (aggregate.GroupResult, error)
}

// Progress is reported after every processed item.
type Progress struct {
	Phase string
	Item  string
	Done  int
	Total int
	Err   error
}

// Report summarizes a finished sweep.
type Report struct {
	Resumed bool          `json:"resumed"`
	Groups  int           `json:"groups"`
	Players int           `json:"players"`
	Failed  []string      `json:"failed,omitempty"`
	Took    time.Duration `json:"took"`
}

// Sweeper runs full recalculations. Only one sweep runs at a time.
type Sweeper struct {
	store      Store
	agg        Recomputer
	limiter    *rate.Limiter
	progress   func(Progress)
	checkpoint string
	logger     logger.Logger
	now        func() time.Time
	running    atomic.Bool
}

// New creates a sweeper. It is unthrottled unless WithRate is given.
func New(store Store, agg Recomputer, opts ...Option) *Sweeper {
	s := &Sweeper{
		store:      store,
		agg:        agg,
		limiter:    rate.NewLimiter(rate.Inf, 0),
		progress:   func(Progress) {},
		checkpoint: DefaultCheckpoint,
		logger:     logger.Get().Named("sweep"),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Running reports whether a sweep is in progress.
func (s *Sweeper) Running() bool { return s.running.Load() }

// Run performs a sweep. With resume set, a stored checkpoint is honoured and
// items at or before its cursor are skipped; otherwise any checkpoint is
// discarded. Item failures are collected in the report and do not stop the
// sweep; store and context errors do, leaving the checkpoint in place.
func (s *Sweeper) Run(ctx context.Context, resume bool) (Report, error) {
	if !s.running.CompareAndSwap(false, true) {
		return Report{}, ErrRunning
	}
	defer s.running.Store(false)

	start := time.Now()
	cp, err := s.start(ctx, resume)
	if err != nil {
		return Report{}, err
	}
	rep := Report{Resumed: cp.Phase != ""}
	s.logger.Info(ctx, "sweep started",
		logger.Bool("resumed", rep.Resumed),
		logger.String("phase", cp.Phase),
		logger.String("cursor", cp.Cursor))

	if cp.Phase == "" || cp.Phase == PhaseGroups {
		if err := s.groups(ctx, cp, &rep); err != nil {
			return rep, err
		}
		cp = model.Checkpoint{Phase: PhasePlayers}
	}
	if err := s.players(ctx, cp, &rep); err != nil {
		return rep, err
	}

	if err := s.store.DeleteCheckpoint(ctx, s.checkpoint); err != nil {
		return rep, fmt.Errorf("clear checkpoint: %w", err)
	}
	rep.Took = time.Since(start)
	s.logger.Info(ctx, "sweep finished",
		logger.Int("groups", rep.Groups),
		logger.Int("players", rep.Players),
		logger.Int("failed", len(rep.Failed)),
		logger.Duration("took", rep.Took))
	return rep, nil
}

func (s *Sweeper) start(ctx context.Context, resume bool) (model.Checkpoint, error) {
	if !resume {
		if err := s.store.DeleteCheckpoint(ctx, s.checkpoint); err != nil {
			return model.Checkpoint{}, fmt.Errorf("clear checkpoint: %w", err)
		}
		return model.Checkpoint{}, nil
	}
	cp, err := s.store.GetCheckpoint(ctx, s.checkpoint)
	switch {
	case errors.Is(err, model.ErrNotFound):
		return model.Checkpoint{}, nil
	case err != nil:
		return model.Checkpoint{}, fmt.Errorf("load checkpoint: %w", err)
	}
	if cp.Phase != PhaseGroups && cp.Phase != PhasePlayers {
		return model.Checkpoint{}, fmt.Errorf("%w: %q", ErrUnknownPhase, cp.Phase)
	}
	return cp, nil
}

func (s *Sweeper) groups(ctx context.Context, cp model.Checkpoint, rep *Report) error {
	runs, err := s.store.FindRuns(ctx, model.RunFilter{})
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}
	var keys []string
	for _, k := range grouping.Distinct(runs) {
		if k.Complete() {
			keys = append(keys, k.String())
		}
	}

	return s.phase(ctx, PhaseGroups, keys, cp, rep, func(item string) error {
		key, err := grouping.ParseKey(item)
		if err != nil {
			return err
		}
		res, err := s.agg.RankGroup(ctx, key)
		if err == nil {
			rep.Groups++
			return nil
		}
		if errors.Is(err, model.ErrPartialBatch) {
			rep.Groups++
			rep.Failed = append(rep.Failed, res.Batch.Failed...)
		}
		return err
	})
}

func (s *Sweeper) players(ctx context.Context, cp model.Checkpoint, rep *Report) error {
	players, err := s.store.ListPlayers(ctx)
	if err != nil {
		return fmt.Errorf("list players: %w", err)
	}
	ids := make([]string, len(players))
	for i, p := range players {
		ids[i] = p.UID
	}

	return s.phase(ctx, PhasePlayers, ids, cp, rep, func(item string) error {
		if _, err := s.agg.Recompute(ctx, item); err != nil {
			return err
		}
		rep.Players++
		return nil
	})
}

// phase walks items in ascending order, skipping those at or before the
// checkpoint cursor, and checkpoints after each one.
func (s *Sweeper) phase(ctx context.Context, phase string, items []string, cp model.Checkpoint, rep *Report, do func(string) error) error {
	slices.Sort(items)
	done := 0
	if cp.Phase == phase && cp.Cursor != "" {
		done = cp.Done
		items = items[sortedAfter(items, cp.Cursor):]
	}
	total := done + len(items)
	metrics.UpdateSweepProgress(phase, done, total)

	for _, item := range items {
		if err := s.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%s: %w", phase, err)
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: %w", phase, err)
		}

		err := do(item)
		status := "ok"
		if err != nil {
			status = "failed"
			rep.Failed = append(rep.Failed, phase+":"+item)
			s.logger.Warn(ctx, "sweep item failed",
				logger.String("phase", phase), logger.String("item", item), logger.Error(err))
		}
		done++
		metrics.RecordSweepItem(phase, status)
		metrics.UpdateSweepProgress(phase, done, total)

		next := model.Checkpoint{Phase: phase, Cursor: item, Done: done, UpdatedAt: s.now()}
		if err := s.store.PutCheckpoint(ctx, s.checkpoint, next); err != nil {
			return fmt.Errorf("store checkpoint: %w", err)
		}
		s.progress(Progress{Phase: phase, Item: item, Done: done, Total: total, Err: err})
	}
	return nil
}

// sortedAfter returns the index of the first item greater than cursor.
func sortedAfter(items []string, cursor string) int {
	i, found := slices.BinarySearch(items, cursor)
	if found {
		i++
	}
	return i
}
