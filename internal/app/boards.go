package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/okian/runboard/internal/adapters/export"
	"github.com/okian/runboard/internal/domain/grouping"
	"github.com/okian/runboard/internal/domain/model"
	"github.com/okian/runboard/internal/domain/normalize"
	"github.com/okian/runboard/internal/domain/types"
)

// Leaderboard returns the positional standings of one group with current
// display names.
func (s *Service) Leaderboard(ctx context.Context, key grouping.Key) (types.Board, error) {
	if err := s.ready(); err != nil {
		return types.Board{}, err
	}
	ctx, span := s.tracer.Start(ctx, "Service.Leaderboard", trace.WithAttributes(
		attribute.String("group", key.String()),
	))
	defer span.End()

	if err := checkKey(key); err != nil {
		return types.Board{}, fail(span, err)
	}
	runs, err := s.store.FindRuns(ctx, key.Filter())
	if err != nil {
		return types.Board{}, fail(span, fmt.Errorf("find runs: %w", err))
	}
	names, err := s.names(ctx, runs)
	if err != nil {
		return types.Board{}, fail(span, err)
	}
	return types.BoardOf(key, runs, names), nil
}

// Leaderboards returns every group that holds a verified run, in key order.
func (s *Service) Leaderboards(ctx context.Context) ([]types.Board, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	ctx, span := s.tracer.Start(ctx, "Service.Leaderboards")
	defer span.End()

	runs, err := s.store.FindRuns(ctx, model.RunFilter{Verified: model.BoolPtr(true)})
	if err != nil {
		return nil, fail(span, fmt.Errorf("find runs: %w", err))
	}
	names, err := s.names(ctx, runs)
	if err != nil {
		return nil, fail(span, err)
	}

	groups := grouping.Partition(runs)
	keys := make([]grouping.Key, 0, len(groups))
	for k := range groups {
		if k.Complete() {
			keys = append(keys, k)
		}
	}
	boards := make([]types.Board, 0, len(keys))
	for _, k := range grouping.Sorted(keys) {
		boards = append(boards, types.BoardOf(k, groups[k], names))
	}
	return boards, nil
}

// ExportWorkbook writes every leaderboard and the player list as XLSX.
func (s *Service) ExportWorkbook(ctx context.Context, w io.Writer) error {
	boards, err := s.Leaderboards(ctx)
	if err != nil {
		return err
	}
	players, err := s.store.ListPlayers(ctx)
	if err != nil {
		return fmt.Errorf("list players: %w", err)
	}
	return export.WriteWorkbook(w, boards, players)
}

// PlayerChart renders a player's cumulative points as PNG.
func (s *Service) PlayerChart(ctx context.Context, uid string) ([]byte, error) {
	profile, err := s.Player(ctx, uid)
	if err != nil {
		return nil, err
	}
	return export.PointsChart(profile.Player, profile.Runs)
}

// names maps the registered competitors of runs to their display names.
// Players that no longer exist are left out.
func (s *Service) names(ctx context.Context, runs []model.Run) (map[string]string, error) {
	names := make(map[string]string)
	for _, r := range runs {
		for _, id := range r.PlayerIDs() {
			if _, ok := names[id]; ok {
				continue
			}
			p, err := s.store.GetPlayer(ctx, id)
			switch {
			case errors.Is(err, model.ErrNotFound):
				names[id] = ""
			case err != nil:
				return nil, fmt.Errorf("load player %s: %w", id, err)
			default:
				names[id] = p.DisplayName
			}
		}
	}
	return names, nil
}

func checkKey(key grouping.Key) error {
	var problems []string
	if !key.LeaderboardType.Valid() {
		problems = append(problems, normalize.ProblemLeaderboard)
	}
	if !key.RunType.Valid() {
		problems = append(problems, normalize.ProblemRunType)
	}
	if key.Category == "" {
		problems = append(problems, normalize.ProblemCategory)
	}
	if key.Platform == "" {
		problems = append(problems, normalize.ProblemPlatform)
	}
	if !key.Complete() {
		problems = append(problems, normalize.ProblemLevel)
	}
	if len(problems) > 0 {
		return &model.ValidationError{Problems: problems}
	}
	return nil
}
