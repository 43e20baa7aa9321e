// Package lifecycle moves runs between the verified/unverified and
// claimed/unclaimed states and keeps derived standings in step.
package lifecycle

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

	"github.com/okian/runboard/internal/domain/aggregate"
	"github.com/okian/runboard/internal/domain/grouping"
	"github.com/okian/runboard/internal/domain/model"
	"github.com/okian/runboard/internal/domain/scoring"
	"github.com/okian/runboard/pkg/logger"
	"github.com/okian/runboard/pkg/metrics"
)

const tracerName = "github.com/okian/runboard/internal/domain/lifecycle"

// Follow-up step names reported in Failure.Step.
const (
	StepRecompute = "recompute"
	StepRankGroup = "rank_group"
	StepSchedule  = "schedule"
)

// Store is the part of the run store the machine needs.
type Store interface {
	GetRun(ctx context.Context, id string) (model.Run, error)
	PutRun(ctx context.Context, id string, fields model.Fields) error
	GetPlayer(ctx context.Context, uid string) (model.Player, error)
	GetPointsConfig(ctx context.Context) (model.PointsConfig, error)
}

// Recomputer rebuilds derived standings.
type Recomputer interface {
	Recompute(ctx context.Context, playerID string, hints ...aggregate.Hint) (aggregate.Result, error)
	RankGroup(ctx context.Context, key grouping.Key, hints ...aggregate.Hint) (aggregate.GroupResult, error)
}

// Scheduler queues a recompute for later.
type Scheduler interface {
	Schedule(ctx context.Context, req model.RecomputeRequest) error
}

// Machine applies run transitions.
type Machine struct {
	store     Store
	agg       Recomputer
	scheduler Scheduler
	calc      scoring.Calculator
	logger    logger.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// New creates a machine. Without a scheduler, cascades are recomputed inline.
func New(store Store, agg Recomputer, opts ...Option) *Machine {
	m := &Machine{
		store:  store,
		agg:    agg,
		calc:   scoring.NewCalculator(),
		logger: logger.Get().Named("lifecycle"),
		tracer: otel.Tracer(tracerName),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Verify marks a run verified by verifier.
func (m *Machine) Verify(ctx context.Context, runID, verifier string) (Outcome, error) {
	return m.transition(ctx, "verify", runID, func(run model.Run) (model.Run, model.Fields, error) {
		if run.Verified {
			return run, nil, fmt.Errorf("%w: run %s is already verified", ErrInvalidTransition, runID)
		}
		run.Verified = true
		run.VerifiedBy = verifier
		return run, model.Fields{model.FieldVerified: true, model.FieldVerifiedBy: verifier}, nil
	})
}

// Unverify withdraws verification. The run loses its rank and drops to
// base points in the same write.
func (m *Machine) Unverify(ctx context.Context, runID string) (Outcome, error) {
	return m.transition(ctx, "unverify", runID, func(run model.Run) (model.Run, model.Fields, error) {
		if !run.Verified {
			return run, nil, fmt.Errorf("%w: run %s is not verified", ErrInvalidTransition, runID)
		}
		points, err := m.basePoints(ctx, run)
		if err != nil {
			return run, nil, err
		}
		run.Verified = false
		run.VerifiedBy = ""
		run.Rank = nil
		run.Points = points
		return run, model.Fields{
			model.FieldVerified:   false,
			model.FieldVerifiedBy: "",
			model.FieldRank:       nil,
			model.FieldPoints:     points,
		}, nil
	})
}

// MarkObsolete sets the obsolete flag regardless of verification state.
func (m *Machine) MarkObsolete(ctx context.Context, runID string, obsolete bool) (Outcome, error) {
	return m.transition(ctx, "obsolete", runID, func(run model.Run) (model.Run, model.Fields, error) {
		run.IsObsolete = obsolete
		return run, model.Fields{model.FieldIsObsolete: obsolete}, nil
	})
}

// Claim assigns the run to playerID when the player's external identity
// matches one of the run's competitors. A competitor slot held by another
// player is reassigned and both players are recomputed. Only the recorded
// external identity can move a held slot; an empty slot without one
// matches on the display name.
func (m *Machine) Claim(ctx context.Context, runID, playerID string) (Outcome, error) {
	player, err := m.store.GetPlayer(ctx, playerID)
	if err != nil {
		metrics.RecordTransition("claim", "rejected")
		return Outcome{}, fmt.Errorf("load player %s: %w", playerID, err)
	}

	return m.transition(ctx, "claim", runID, func(run model.Run) (model.Run, model.Fields, error) {
		switch {
		case player.MatchesIdentity(claimIdentity(run.SRCPlayerName, run.PlayerName, run.PlayerID)):
			if run.PlayerID == playerID {
				return run, nil, fmt.Errorf("%w: %s holds run %s", ErrAlreadyClaimed, playerID, runID)
			}
			run.PlayerID = playerID
			return run, model.Fields{model.FieldPlayerID: playerID}, nil
		case run.IsCoop() && player.MatchesIdentity(claimIdentity(run.SRCPlayer2Name, run.Player2Name, run.Player2ID)):
			if run.Player2ID == playerID {
				return run, nil, fmt.Errorf("%w: %s holds run %s", ErrAlreadyClaimed, playerID, runID)
			}
			run.Player2ID = playerID
			return run, model.Fields{model.FieldPlayer2ID: playerID}, nil
		default:
			return run, nil, fmt.Errorf("%w: %s cannot claim run %s", ErrIdentityMismatch, playerID, runID)
		}
	})
}

type flip func(run model.Run) (model.Run, model.Fields, error)

// transition loads the run, applies f, persists the result and reconciles.
func (m *Machine) transition(ctx context.Context, name, runID string, f flip) (Outcome, error) {
	ctx, span := m.tracer.Start(ctx, "Machine."+name, trace.WithAttributes(
		attribute.String("run.id", runID),
	))
	defer span.End()

	before, err := m.store.GetRun(ctx, runID)
	if err != nil {
		return Outcome{}, m.reject(span, name, fmt.Errorf("load run %s: %w", runID, err))
	}
	after, fields, err := f(before)
	if err != nil {
		return Outcome{}, m.reject(span, name, err)
	}
	if err := m.store.PutRun(ctx, runID, fields); err != nil {
		return Outcome{}, m.reject(span, name, fmt.Errorf("store run %s: %w", runID, err))
	}

	out := m.reconcile(ctx, name, &before, &after)
	status := "ok"
	if !out.OK() {
		status = "partial"
		span.SetAttributes(attribute.Int("failures", len(out.Failures)))
	}
	metrics.RecordTransition(name, status)
	m.logger.Info(ctx, "run transition",
		logger.String("transition", name),
		logger.String("run", runID),
		logger.String("from", out.From.String()),
		logger.String("to", out.To.String()),
		logger.Strings("recomputed", out.Recomputed),
		logger.Int("failures", len(out.Failures)))
	return out, nil
}

// Reconcile rebuilds the standings touched by a run moving from before to
// after. before is nil for a new run and after is nil for a deleted one.
// Failures are reported in the outcome; the change itself stays.
func (m *Machine) Reconcile(ctx context.Context, reason string, before, after *model.Run) Outcome {
	ctx, span := m.tracer.Start(ctx, "Machine.Reconcile", trace.WithAttributes(
		attribute.String("reason", reason),
	))
	defer span.End()
	return m.reconcile(ctx, reason, before, after)
}

func (m *Machine) reconcile(ctx context.Context, reason string, before, after *model.Run) Outcome {
	var out Outcome
	var hints []aggregate.Hint
	var keys []grouping.Key
	var players []string

	if before != nil {
		out.From = StateOf(*before)
		out.Run = *before
		keys = append(keys, grouping.KeyOf(*before))
		players = append(players, before.PlayerIDs()...)
	}
	if after != nil {
		out.To = StateOf(*after)
		out.Run = *after
		keys = append(keys, grouping.KeyOf(*after))
		players = append(players, after.PlayerIDs()...)
		hints = append(hints, aggregate.WithPinned(*after))
	}
	keys = uniqueKeys(keys)
	players = unique(players)
	hints = append(hints, aggregate.WithGroup(keys...))

	affected := make(map[string]bool)
	for _, p := range players {
		res, err := m.agg.Recompute(ctx, p, hints...)
		for _, a := range res.Affected {
			affected[a] = true
		}
		if err != nil {
			out.Failures = append(out.Failures, newFailure(StepRecompute, p, err))
			if errors.Is(err, model.ErrPartialBatch) {
				out.Recomputed = append(out.Recomputed, p)
			}
			continue
		}
		out.Recomputed = append(out.Recomputed, p)
	}

	if len(players) == 0 {
		for _, key := range keys {
			res, err := m.agg.RankGroup(ctx, key, hints...)
			for _, a := range res.Affected {
				affected[a] = true
			}
			if err != nil {
				out.Failures = append(out.Failures, newFailure(StepRankGroup, "", err))
			}
		}
	}

	for _, p := range players {
		delete(affected, p)
	}
	m.cascade(ctx, reason, affected, &out)
	return out
}

// cascade recomputes players whose cached standings changed as a side effect.
func (m *Machine) cascade(ctx context.Context, reason string, affected map[string]bool, out *Outcome) {
	ids := make([]string, 0, len(affected))
	for p := range affected {
		ids = append(ids, p)
	}
	slices.Sort(ids)

	for _, p := range ids {
		if m.scheduler == nil {
			if _, err := m.agg.Recompute(ctx, p); err != nil {
				out.Failures = append(out.Failures, newFailure(StepRecompute, p, err))
				continue
			}
			out.Recomputed = append(out.Recomputed, p)
			continue
		}

		req := model.RecomputeRequest{PlayerID: p, Reason: "cascade:" + reason, RequestedAt: m.now()}
		if err := m.scheduler.Schedule(ctx, req); err != nil {
			out.Failures = append(out.Failures, newFailure(StepSchedule, p, err))
			continue
		}
		out.Scheduled = append(out.Scheduled, p)
	}
}

// basePoints is the award of a run once it no longer holds a rank.
func (m *Machine) basePoints(ctx context.Context, run model.Run) (int, error) {
	cfg, err := m.store.GetPointsConfig(ctx)
	if err != nil {
		return 0, fmt.Errorf("load points config: %w", err)
	}
	in := scoring.InputFor(run, model.Reference{}, nil)
	in.BaseOnly = true
	return m.calc.Points(in, cfg), nil
}

func (m *Machine) reject(span trace.Span, name string, err error) error {
	status := "rejected"
	if !errors.Is(err, ErrInvalidTransition) && !errors.Is(err, ErrIdentityMismatch) &&
		!errors.Is(err, ErrAlreadyClaimed) && !errors.Is(err, model.ErrNotFound) {
		status = "error"
		metrics.RecordErrorByComponent("lifecycle", "store")
	}
	metrics.RecordTransition(name, status)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func unique(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

func uniqueKeys(keys []grouping.Key) []grouping.Key {
	out := make([]grouping.Key, 0, len(keys))
	for _, k := range keys {
		if !slices.Contains(out, k) {
			out = append(out, k)
		}
	}
	return out
}

// claimIdentity is the name a claimant must match for one competitor slot.
func claimIdentity(src, display, holder string) string {
	switch {
	case src != "":
		return src
	case holder == "":
		return display
	default:
		return ""
	}
}
