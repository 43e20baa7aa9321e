package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/okian/runboard/internal/domain/model"
	"github.com/okian/runboard/internal/domain/scoring"
	"github.com/okian/runboard/internal/domain/sweep"
	"github.com/okian/runboard/pkg/logger"
)

// Settings problems.
const (
	ProblemNegativePoints = "points values cannot be negative"
	ProblemBonusOrder     = "place bonuses must decrease from first to third"
	ProblemReferenceKind  = "reference kind must be category, platform or level"
	ProblemReferenceID    = "reference id is required"
	ProblemThreshold      = "bonus threshold cannot be negative"
)

// PointsConfig returns the active points configuration.
func (s *Service) PointsConfig(ctx context.Context) (model.PointsConfig, error) {
	if err := s.ready(); err != nil {
		return model.PointsConfig{}, err
	}
	return s.store.GetPointsConfig(ctx)
}

// UpdatePointsConfig replaces the points configuration. Cached points keep
// their old values until the next recompute or sweep.
func (s *Service) UpdatePointsConfig(ctx context.Context, cfg model.PointsConfig) error {
	if err := s.ready(); err != nil {
		return err
	}
	for _, v := range []int{
		cfg.BaseMultiplier, cfg.FirstPlaceBonus, cfg.SecondPlaceBonus, cfg.ThirdPlaceBonus,
		cfg.ThresholdBonus, cfg.AnyPercentThreshold, cfg.NocutsNoshipsThreshold,
	} {
		if v < 0 {
			return &model.ValidationError{Problems: []string{ProblemNegativePoints}}
		}
	}
	if !cfg.BonusesOrdered() {
		return &model.ValidationError{Problems: []string{ProblemBonusOrder}}
	}
	if err := s.store.PutPointsConfig(ctx, cfg); err != nil {
		return fmt.Errorf("store points config: %w", err)
	}
	s.logger.Info(ctx, "points config updated", logger.Any("config", cfg))
	return nil
}

// RegisterReference creates or replaces a category, platform or level.
func (s *Service) RegisterReference(ctx context.Context, ref model.Reference) error {
	if err := s.ready(); err != nil {
		return err
	}
	ref.ID = strings.TrimSpace(ref.ID)
	var problems []string
	if !ref.Kind.Valid() {
		problems = append(problems, ProblemReferenceKind)
	}
	if ref.ID == "" {
		problems = append(problems, ProblemReferenceID)
	}
	if ref.BonusThresholdSeconds < 0 {
		problems = append(problems, ProblemThreshold)
	}
	if len(problems) > 0 {
		return &model.ValidationError{Problems: problems}
	}
	if ref.Name == "" {
		ref.Name = ref.ID
	}
	if err := s.store.PutReference(ctx, ref); err != nil {
		return fmt.Errorf("store reference: %w", err)
	}
	return nil
}

// References lists the references of one kind.
func (s *Service) References(ctx context.Context, kind model.ReferenceKind) ([]model.Reference, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.store.ListReferences(ctx, kind)
}

// MigrateThresholds writes explicit bonus thresholds onto categories that
// still depend on the name convention and returns the ones it changed.
func (s *Service) MigrateThresholds(ctx context.Context) ([]model.Reference, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	ctx, span := s.tracer.Start(ctx, "Service.MigrateThresholds")
	defer span.End()

	categories, err := s.store.ListReferences(ctx, model.KindCategory)
	if err != nil {
		return nil, fail(span, fmt.Errorf("list categories: %w", err))
	}
	cfg, err := s.store.GetPointsConfig(ctx)
	if err != nil {
		return nil, fail(span, fmt.Errorf("load points config: %w", err))
	}

	changed := scoring.MigrateThresholds(categories, cfg)
	for _, c := range changed {
		if err := s.store.PutReference(ctx, c); err != nil {
			return nil, fail(span, fmt.Errorf("store category %s: %w", c.ID, err))
		}
		s.logger.Info(ctx, "category threshold migrated",
			logger.String("category", c.ID),
			logger.Int("thresholdSeconds", c.BonusThresholdSeconds),
		)
	}
	return changed, nil
}

// Sweep re-ranks every group and recomputes every player, blocking until
// done. With resume set it continues an interrupted sweep.
func (s *Service) Sweep(ctx context.Context, resume bool) (sweep.Report, error) {
	if err := s.ready(); err != nil {
		return sweep.Report{}, err
	}
	return s.sweeper.Run(ctx, resume)
}

// StartSweep runs a sweep in the background. It returns sweep.ErrRunning
// when one is already in progress. Stop cancels it; the checkpoint lets a
// later sweep resume.
func (s *Service) StartSweep(resume bool) error {
	if err := s.ready(); err != nil {
		return err
	}
	s.sweepMu.Lock()
	defer s.sweepMu.Unlock()
	if s.sweeper.Running() || s.sweepCancel != nil {
		return sweep.ErrRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.sweepCancel, s.sweepDone = cancel, done

	go func() {
		defer close(done)
		rep, err := s.sweeper.Run(ctx, resume)
		switch {
		case errors.Is(err, context.Canceled):
			s.logger.Info(ctx, "sweep cancelled", logger.Int("groups", rep.Groups), logger.Int("players", rep.Players))
		case err != nil:
			s.logger.Error(ctx, "sweep failed", logger.Error(err))
		default:
			s.logger.Info(ctx, "sweep finished",
				logger.Int("groups", rep.Groups),
				logger.Int("players", rep.Players),
				logger.Strings("failed", rep.Failed),
				logger.Duration("took", rep.Took),
			)
		}

		s.sweepMu.Lock()
		if s.sweepDone == done {
			s.sweepCancel, s.sweepDone = nil, nil
		}
		s.sweepMu.Unlock()
		cancel()
	}()
	return nil
}
