package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/okian/runboard/internal/domain/lifecycle"
	"github.com/okian/runboard/internal/domain/model"
	"github.com/okian/runboard/internal/domain/normalize"
	"github.com/okian/runboard/pkg/logger"
	"github.com/okian/runboard/pkg/metrics"
)

// protectedFields are changed by transitions or recomputation only.
var protectedFields = map[string]bool{ //nolint:gochecknoglobals // lookup table
	model.FieldVerified:   true,
	model.FieldVerifiedBy: true,
	model.FieldIsObsolete: true,
	model.FieldRank:       true,
	model.FieldPoints:     true,
	model.FieldPlayerID:   true,
	model.FieldPlayer2ID:  true,
}

// SubmitRun validates, normalizes and stores a new run, then rebuilds the
// standings it touches. Imported runs skip validation when lenient is set.
func (s *Service) SubmitRun(ctx context.Context, run model.Run, lenient bool) (lifecycle.Outcome, error) {
	if err := s.ready(); err != nil {
		return lifecycle.Outcome{}, err
	}
	ctx, span := s.tracer.Start(ctx, "Service.SubmitRun")
	defer span.End()

	if err := normalize.Check(run); err != nil && !(lenient && run.ImportedFromSRC) {
		metrics.RecordRunSubmission("rejected")
		return lifecycle.Outcome{}, fail(span, err)
	}

	run = normalize.Normalize(run, s.now())
	for _, id := range run.PlayerIDs() {
		if _, err := s.store.GetPlayer(ctx, id); err != nil {
			metrics.RecordRunSubmission("rejected")
			return lifecycle.Outcome{}, fail(span, err)
		}
	}
	run.ID = uuid.NewString()
	run.SubmittedAt = s.now().UTC()
	run.Rank = nil
	run.Points = 0
	if !run.Verified {
		run.VerifiedBy = ""
	}
	span.SetAttributes(attribute.String("run.id", run.ID))

	if err := s.store.PutRun(ctx, run.ID, model.RunFieldsOf(run)); err != nil {
		metrics.RecordRunSubmission("error")
		return lifecycle.Outcome{}, fail(span, fmt.Errorf("store run: %w", err))
	}
	metrics.RecordRunSubmission("accepted")

	out := s.machine.Reconcile(ctx, "submit", nil, &run)
	s.logOutcome(ctx, "run submitted", out)
	return out, nil
}

// EditRun merges fields into a run and rebuilds the standings of both its
// old and new group. Verification, obsolescence, claims and derived values
// go through their own operations.
func (s *Service) EditRun(ctx context.Context, id string, fields model.Fields) (lifecycle.Outcome, error) {
	if err := s.ready(); err != nil {
		return lifecycle.Outcome{}, err
	}
	ctx, span := s.tracer.Start(ctx, "Service.EditRun", trace.WithAttributes(attribute.String("run.id", id)))
	defer span.End()

	for key := range fields {
		if protectedFields[key] {
			return lifecycle.Outcome{}, fail(span, fmt.Errorf("%w: %s", ErrProtectedEdit, key))
		}
	}

	before, err := s.store.GetRun(ctx, id)
	if err != nil {
		return lifecycle.Outcome{}, fail(span, err)
	}
	after := before
	if err := model.ApplyRun(&after, fields); err != nil {
		return lifecycle.Outcome{}, fail(span, &model.ValidationError{Problems: []string{err.Error()}})
	}
	if err := normalize.Check(after); err != nil && !after.ImportedFromSRC {
		return lifecycle.Outcome{}, fail(span, err)
	}
	after = normalize.Normalize(after, s.now())

	if err := s.store.PutRun(ctx, id, model.RunFieldsOf(after)); err != nil {
		return lifecycle.Outcome{}, fail(span, fmt.Errorf("store run: %w", err))
	}

	out := s.machine.Reconcile(ctx, "edit", &before, &after)
	s.logOutcome(ctx, "run edited", out)
	return out, nil
}

// DeleteRun removes a run and rebuilds the standings it held.
func (s *Service) DeleteRun(ctx context.Context, id string) (lifecycle.Outcome, error) {
	if err := s.ready(); err != nil {
		return lifecycle.Outcome{}, err
	}
	ctx, span := s.tracer.Start(ctx, "Service.DeleteRun", trace.WithAttributes(attribute.String("run.id", id)))
	defer span.End()

	before, err := s.store.GetRun(ctx, id)
	if err != nil {
		return lifecycle.Outcome{}, fail(span, err)
	}
	if err := s.store.DeleteRun(ctx, id); err != nil {
		return lifecycle.Outcome{}, fail(span, fmt.Errorf("delete run: %w", err))
	}

	out := s.machine.Reconcile(ctx, "delete", &before, nil)
	s.logOutcome(ctx, "run deleted", out)
	return out, nil
}

// Run returns a stored run.
func (s *Service) Run(ctx context.Context, id string) (model.Run, error) {
	if err := s.ready(); err != nil {
		return model.Run{}, err
	}
	return s.store.GetRun(ctx, id)
}

// Verify marks a run verified by verifier.
func (s *Service) Verify(ctx context.Context, id, verifier string) (lifecycle.Outcome, error) {
	if err := s.ready(); err != nil {
		return lifecycle.Outcome{}, err
	}
	return s.machine.Verify(ctx, id, verifier)
}

// Unverify withdraws a run's verification.
func (s *Service) Unverify(ctx context.Context, id string) (lifecycle.Outcome, error) {
	if err := s.ready(); err != nil {
		return lifecycle.Outcome{}, err
	}
	return s.machine.Unverify(ctx, id)
}

// MarkObsolete sets or clears a run's obsolete flag.
func (s *Service) MarkObsolete(ctx context.Context, id string, obsolete bool) (lifecycle.Outcome, error) {
	if err := s.ready(); err != nil {
		return lifecycle.Outcome{}, err
	}
	return s.machine.MarkObsolete(ctx, id, obsolete)
}

// Claim links an imported run to a registered player.
func (s *Service) Claim(ctx context.Context, id, playerID string) (lifecycle.Outcome, error) {
	if err := s.ready(); err != nil {
		return lifecycle.Outcome{}, err
	}
	return s.machine.Claim(ctx, id, playerID)
}

func (s *Service) logOutcome(ctx context.Context, msg string, out lifecycle.Outcome) {
	fields := []logger.Field{
		logger.String("runID", out.Run.ID),
		logger.Strings("recomputed", out.Recomputed),
		logger.Strings("scheduled", out.Scheduled),
	}
	if out.OK() {
		s.logger.Debug(ctx, msg, fields...)
		return
	}
	errs := make([]error, 0, len(out.Failures))
	for _, f := range out.Failures {
		errs = append(errs, f.Err)
	}
	s.logger.Warn(ctx, msg+" with failures", append(fields, logger.Error(errors.Join(errs...)))...)
}
