package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/okian/runboard/internal/domain/aggregate"
	"github.com/okian/runboard/internal/domain/model"
	"github.com/okian/runboard/internal/domain/types"
)

// Player registration problems.
const (
	ProblemDisplayName = "display name is required"
)

// RegisterPlayer stores a new player with zero totals. An empty UID is
// replaced by a generated one.
func (s *Service) RegisterPlayer(ctx context.Context, p model.Player) (model.Player, error) {
	if err := s.ready(); err != nil {
		return model.Player{}, err
	}
	ctx, span := s.tracer.Start(ctx, "Service.RegisterPlayer")
	defer span.End()

	p.DisplayName = strings.TrimSpace(p.DisplayName)
	if p.DisplayName == "" {
		return model.Player{}, fail(span, &model.ValidationError{Problems: []string{ProblemDisplayName}})
	}
	p.UID = strings.TrimSpace(p.UID)
	if p.UID == "" {
		p.UID = uuid.NewString()
	}
	span.SetAttributes(attribute.String("player.id", p.UID))

	_, err := s.store.GetPlayer(ctx, p.UID)
	switch {
	case err == nil:
		return model.Player{}, fail(span, fmt.Errorf("%w: %s", ErrPlayerExists, p.UID))
	case !errors.Is(err, model.ErrNotFound):
		return model.Player{}, fail(span, err)
	}

	p.TotalPoints, p.TotalRuns = 0, 0
	if err := s.store.PutPlayer(ctx, p.UID, model.PlayerFieldsOf(p)); err != nil {
		return model.Player{}, fail(span, fmt.Errorf("store player: %w", err))
	}
	return p, nil
}

// Player returns a player with every run they compete in, fastest first.
func (s *Service) Player(ctx context.Context, uid string) (types.PlayerProfile, error) {
	if err := s.ready(); err != nil {
		return types.PlayerProfile{}, err
	}
	ctx, span := s.tracer.Start(ctx, "Service.Player", trace.WithAttributes(attribute.String("player.id", uid)))
	defer span.End()

	p, err := s.store.GetPlayer(ctx, uid)
	if err != nil {
		return types.PlayerProfile{}, fail(span, err)
	}
	runs, err := s.playerRuns(ctx, uid)
	if err != nil {
		return types.PlayerProfile{}, fail(span, err)
	}
	return types.PlayerProfile{Player: p, Runs: runs}, nil
}

// Players lists every registered player.
func (s *Service) Players(ctx context.Context) ([]model.Player, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.store.ListPlayers(ctx)
}

// Recompute rebuilds a player's totals and the groups they compete in.
func (s *Service) Recompute(ctx context.Context, uid string) (aggregate.Result, error) {
	if err := s.ready(); err != nil {
		return aggregate.Result{}, err
	}
	return s.agg.Recompute(ctx, uid)
}

func (s *Service) playerRuns(ctx context.Context, uid string) ([]model.Run, error) {
	first, err := s.store.FindRuns(ctx, model.RunFilter{PlayerID: uid})
	if err != nil {
		return nil, fmt.Errorf("find runs: %w", err)
	}
	second, err := s.store.FindRuns(ctx, model.RunFilter{Player2ID: uid})
	if err != nil {
		return nil, fmt.Errorf("find partner runs: %w", err)
	}

	seen := make(map[string]bool, len(first)+len(second))
	runs := make([]model.Run, 0, len(first)+len(second))
	for _, r := range append(first, second...) {
		if seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		runs = append(runs, r)
	}
	sort.Slice(runs, func(i, j int) bool {
		if a, b := runs[i].Seconds(), runs[j].Seconds(); a != b {
			return a < b
		}
		return runs[i].ID < runs[j].ID
	})
	return runs, nil
}
