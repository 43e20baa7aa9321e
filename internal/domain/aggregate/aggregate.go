// Package aggregate keeps cached ranks, run points and player totals in step
// with the runs they are derived from.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/okian/runboard/internal/domain/grouping"
	"github.com/okian/runboard/internal/domain/model"
	"github.com/okian/runboard/internal/domain/ranking"
	"github.com/okian/runboard/internal/domain/scoring"
	"github.com/okian/runboard/pkg/logger"
	"github.com/okian/runboard/pkg/metrics"
)

// DefaultBatchSize bounds the number of runs written per store call.
const DefaultBatchSize = 500

const tracerName = "github.com/okian/runboard/internal/domain/aggregate"

// Store is the part of the run store the aggregator reads and writes.
type Store interface {
	FindRuns(ctx context.Context, filter model.RunFilter) ([]model.Run, error)
	PutRun(ctx context.Context, id string, fields model.Fields) error
	GetPlayer(ctx context.Context, uid string) (model.Player, error)
	PutPlayer(ctx context.Context, uid string, fields model.Fields) error
	GetPointsConfig(ctx context.Context) (model.PointsConfig, error)
	GetReference(ctx context.Context, kind model.ReferenceKind, id string) (model.Reference, error)
}

// BatchStore is implemented by stores that can write several runs in one
// round trip. A *model.PartialBatchFailure return names the runs that were
// not written; any other error fails the whole chunk.
type BatchStore interface {
	PutRuns(ctx context.Context, writes []model.RunWrite) error
}

// Locker serializes work on a key.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// Aggregator recomputes player totals and group standings.
type Aggregator struct {
	store     Store
	locker    Locker
	calc      scoring.Calculator
	batchSize int
	logger    logger.Logger
	tracer    trace.Tracer
}

// New creates an aggregator over store.
func New(store Store, opts ...Option) *Aggregator {
	a := &Aggregator{
		store:     store,
		locker:    nopLocker{},
		calc:      scoring.NewCalculator(),
		batchSize: DefaultBatchSize,
		logger:    logger.Get().Named("aggregate"),
		tracer:    otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// standing is the derived state of one run.
type standing struct {
	rank   *int
	points int
}

// groupPlan is the outcome of re-ranking one group before anything is written.
type groupPlan struct {
	key        grouping.Key
	contenders int
	standings  map[string]standing
	writes     []model.RunWrite
	changed    map[string]model.Run
}

// Recompute rebuilds the totals of a player from their verified runs,
// re-ranking every group the player competes in along the way. A missing
// player is reported as *model.NotFoundError and nothing is written.
// Failures limited to some groups or chunks are reported in the Result and
// returned as *model.PartialBatchFailure; the totals are still written.
func (a *Aggregator) Recompute(ctx context.Context, playerID string, hints ...Hint) (Result, error) {
	ctx, span := a.tracer.Start(ctx, "Aggregator.Recompute", trace.WithAttributes(
		attribute.String("player.id", playerID),
	))
	defer span.End()

	start := time.Now()
	res, err := a.recompute(ctx, playerID, collect(hints))
	if err == nil {
		err = res.Err()
	}

	status := "ok"
	switch {
	case errors.Is(err, model.ErrNotFound):
		status = "not_found"
	case errors.Is(err, model.ErrPartialBatch):
		status = "partial"
	case err != nil:
		status = "error"
	}
	metrics.RecordRecompute(status, time.Since(start))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		a.logger.Warn(ctx, "recompute finished with errors",
			logger.String("player", playerID), logger.String("status", status), logger.Error(err))
		return res, err
	}

	span.SetAttributes(attribute.Int("player.total_points", res.TotalPoints), attribute.Int("player.total_runs", res.TotalRuns))
	a.logger.Debug(ctx, "recomputed player",
		logger.String("player", playerID),
		logger.Int("total_points", res.TotalPoints),
		logger.Int("total_runs", res.TotalRuns),
		logger.Int("updated", res.Batch.Updated),
		logger.Duration("took", time.Since(start)))
	return res, nil
}

func (a *Aggregator) recompute(ctx context.Context, playerID string, h hintSet) (Result, error) {
	res := Result{PlayerID: playerID}

	unlock, err := a.lock(ctx, playerID)
	if err != nil {
		return res, err
	}
	defer unlock()

	if _, err := a.store.GetPlayer(ctx, playerID); err != nil {
		return res, fmt.Errorf("load player %s: %w", playerID, err)
	}
	cfg, err := a.store.GetPointsConfig(ctx)
	if err != nil {
		return res, fmt.Errorf("load points config: %w", err)
	}
	own, err := a.playerRuns(ctx, playerID, h)
	if err != nil {
		return res, err
	}

	keys := slices.Concat(grouping.Distinct(own), h.groups, h.pinnedGroups())
	keys = grouping.Sorted(dedupeKeys(keys))

	standings := make(map[string]standing, len(own))
	changed := make(map[string]model.Run)
	var writes []model.RunWrite
	for _, key := range keys {
		if !key.Complete() {
			plan := a.planUnranked(ctx, key, own, cfg)
			for id := range plan.standings {
				res.Inconsistent = append(res.Inconsistent, id)
			}
			merge(plan, standings, changed, &writes)
			continue
		}

		plan, err := a.planGroup(ctx, key, cfg, h)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("group %s: %v", key, err))
			for _, r := range own {
				if key.Contains(r) {
					res.Skipped = append(res.Skipped, r.ID)
				}
			}
			continue
		}
		merge(plan, standings, changed, &writes)
	}
	slices.Sort(res.Inconsistent)

	res.Batch = a.writeBatch(ctx, writes)
	failed := make(map[string]bool, len(res.Batch.Failed))
	for _, id := range res.Batch.Failed {
		failed[id] = true
	}

	for _, r := range own {
		points := r.Points
		if s, ok := standings[r.ID]; ok && !failed[r.ID] {
			points = s.points
		}
		res.TotalPoints += points
	}
	res.TotalRuns = len(own)
	res.Affected = affected(changed, failed, playerID)

	if err := a.store.PutPlayer(ctx, playerID, model.TotalsFields(res.TotalPoints, res.TotalRuns)); err != nil {
		return res, fmt.Errorf("write totals of %s: %w", playerID, err)
	}
	return res, nil
}

// RankGroup re-ranks a single group and persists the changed standings. It
// does not touch player totals; the players whose runs changed are returned
// in Affected.
func (a *Aggregator) RankGroup(ctx context.Context, key grouping.Key, hints ...Hint) (GroupResult, error) {
	ctx, span := a.tracer.Start(ctx, "Aggregator.RankGroup", trace.WithAttributes(
		attribute.String("group.key", key.String()),
	))
	defer span.End()

	res := GroupResult{Key: key}
	if !key.Complete() {
		err := fmt.Errorf("group %s: %w", key, model.ErrInconsistentGroup)
		span.RecordError(err)
		metrics.RecordGroupRerank("inconsistent")
		return res, err
	}

	cfg, err := a.store.GetPointsConfig(ctx)
	if err != nil {
		return res, a.groupFailed(span, fmt.Errorf("load points config: %w", err))
	}
	plan, err := a.planGroup(ctx, key, cfg, collect(hints))
	if err != nil {
		return res, a.groupFailed(span, fmt.Errorf("group %s: %w", key, err))
	}

	res.Contenders = plan.contenders
	res.Batch = a.writeBatch(ctx, plan.writes)
	failed := make(map[string]bool, len(res.Batch.Failed))
	for _, id := range res.Batch.Failed {
		failed[id] = true
	}
	res.Affected = affected(plan.changed, failed, "")

	if err := res.Err(); err != nil {
		metrics.RecordGroupRerank("partial")
		span.RecordError(err)
		return res, err
	}
	metrics.RecordGroupRerank("ok")
	return res, nil
}

func (a *Aggregator) groupFailed(span trace.Span, err error) error {
	metrics.RecordGroupRerank("error")
	metrics.RecordErrorByComponent("aggregate", "store")
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// playerRuns returns the verified runs the player competes in: every run in
// the first slot plus co-op runs in the second.
func (a *Aggregator) playerRuns(ctx context.Context, playerID string, h hintSet) ([]model.Run, error) {
	filters := []model.RunFilter{
		{PlayerID: playerID, Verified: model.BoolPtr(true)},
		{Player2ID: playerID, RunType: model.RunTypeCoop, Verified: model.BoolPtr(true)},
	}

	seen := make(map[string]bool)
	var runs []model.Run
	for _, f := range filters {
		found, err := a.store.FindRuns(ctx, f)
		if err != nil {
			return nil, fmt.Errorf("find runs of %s: %w", playerID, err)
		}
		for _, r := range h.pin(found, f) {
			if seen[r.ID] {
				continue
			}
			seen[r.ID] = true
			runs = append(runs, r)
		}
	}
	return runs, nil
}

// planGroup ranks a group and scores every sibling.
func (a *Aggregator) planGroup(ctx context.Context, key grouping.Key, cfg model.PointsConfig, h hintSet) (groupPlan, error) {
	filter := key.Filter()
	siblings, err := a.store.FindRuns(ctx, filter)
	if err != nil {
		return groupPlan{}, fmt.Errorf("find siblings: %w", err)
	}
	siblings = h.pin(siblings, filter)

	category, err := a.category(ctx, key.Category)
	if err != nil {
		return groupPlan{}, err
	}

	board := ranking.Standings(siblings)
	ranks := make(map[string]*int, len(board))
	for _, p := range board {
		ranks[p.Run.ID] = p.Rank
	}

	plan := newPlan(key, len(siblings))
	plan.contenders = len(board)
	for _, r := range siblings {
		rank := ranks[r.ID]
		plan.add(r, rank, a.calc.Points(scoring.InputFor(r, category, rank), cfg))
	}
	return plan, nil
}

// planUnranked scores the player's runs of a group that cannot be ranked.
// They keep no rank but still earn the points their time and flags allow.
func (a *Aggregator) planUnranked(ctx context.Context, key grouping.Key, own []model.Run, cfg model.PointsConfig) groupPlan {
	category, err := a.category(ctx, key.Category)
	if err != nil {
		category = model.Reference{}
	}
	plan := newPlan(key, 0)
	for _, r := range own {
		if !key.Contains(r) {
			continue
		}
		plan.add(r, nil, a.calc.Points(scoring.InputFor(r, category, nil), cfg))
	}
	return plan
}

// category resolves the category entity, treating an unregistered one as
// carrying no threshold.
func (a *Aggregator) category(ctx context.Context, id string) (model.Reference, error) {
	ref, err := a.store.GetReference(ctx, model.KindCategory, id)
	switch {
	case err == nil:
		return ref, nil
	case errors.Is(err, model.ErrNotFound):
		return model.Reference{Kind: model.KindCategory, ID: id}, nil
	default:
		return model.Reference{}, fmt.Errorf("load category %s: %w", id, err)
	}
}

func (a *Aggregator) lock(ctx context.Context, playerID string) (func(), error) {
	unlock, err := a.locker.Lock(ctx, "player:"+playerID)
	if err != nil {
		return nil, fmt.Errorf("lock player %s: %w", playerID, err)
	}
	return unlock, nil
}

func newPlan(key grouping.Key, size int) groupPlan {
	return groupPlan{
		key:       key,
		standings: make(map[string]standing, size),
		changed:   make(map[string]model.Run),
	}
}

func (p *groupPlan) add(r model.Run, rank *int, points int) {
	p.standings[r.ID] = standing{rank: rank, points: points}
	if model.SameRank(r.Rank, rank) && r.Points == points {
		return
	}
	p.writes = append(p.writes, model.RunWrite{ID: r.ID, Fields: model.StandingFields(rank, points)})
	p.changed[r.ID] = r
}

func merge(plan groupPlan, standings map[string]standing, changed map[string]model.Run, writes *[]model.RunWrite) {
	for id, s := range plan.standings {
		standings[id] = s
	}
	for id, r := range plan.changed {
		changed[id] = r
	}
	*writes = append(*writes, plan.writes...)
}

// affected lists the registered players, other than self, whose runs were
// rewritten.
func affected(changed map[string]model.Run, failed map[string]bool, self string) []string {
	set := make(map[string]bool)
	for id, r := range changed {
		if failed[id] {
			continue
		}
		for _, p := range r.PlayerIDs() {
			if p != self {
				set[p] = true
			}
		}
	}
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

func dedupeKeys(keys []grouping.Key) []grouping.Key {
	seen := make(map[grouping.Key]bool, len(keys))
	out := keys[:0:0]
	for _, k := range keys {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}

type nopLocker struct{}

func (nopLocker) Lock(context.Context, string) (func(), error) { return func() {}, nil }
