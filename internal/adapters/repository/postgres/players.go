package postgres

import (
	"context"
	"fmt"
	"sort"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/okian/runboard/internal/adapters/repository"
	"github.com/okian/runboard/internal/domain/model"
)

func selectPlayers() sq.SelectBuilder {
	return psql.Select(
		quote("uid"),
		quote(model.FieldDisplayName),
		quote(model.FieldNameColor),
		quote(model.FieldSRCUsername),
		quote(model.FieldTotalPoints),
		quote(model.FieldTotalRuns),
	).From("players")
}

func scanPlayer(row pgx.Row) (model.Player, error) {
	var p model.Player
	err := row.Scan(&p.UID, &p.DisplayName, &p.NameColor, &p.SRCUsername, &p.TotalPoints, &p.TotalRuns)
	return p, err
}

// GetPlayer returns a player by uid.
func (s *Store) GetPlayer(ctx context.Context, uid string) (model.Player, error) {
	row, err := s.row(ctx, selectPlayers().Where(sq.Eq{quote("uid"): uid}))
	if err != nil {
		return model.Player{}, err
	}
	p, err := scanPlayer(row)
	if err != nil {
		if nf := notFound(err, "player", uid); nf != nil {
			return model.Player{}, nf
		}
		return model.Player{}, s.fail("get player", err)
	}
	return p, nil
}

// PutPlayer merges fields into the player, creating it when absent.
func (s *Store) PutPlayer(ctx context.Context, uid string, fields model.Fields) error {
	if strings.TrimSpace(uid) == "" {
		return fmt.Errorf("%w: empty player uid", repository.ErrInvalidID)
	}
	var scratch model.Player
	if err := model.ApplyPlayer(&scratch, fields); err != nil {
		return err
	}

	values := make(map[string]any, len(fields)+1)
	cols := make([]string, 0, len(fields))
	for key, v := range fields {
		values[quote(key)] = v
		cols = append(cols, key)
	}
	sort.Strings(cols)
	values[quote("uid")] = uid

	q := psql.Insert("players").SetMap(values).Suffix(upsertSuffix("uid", cols))
	if _, err := s.exec(ctx, q); err != nil {
		return s.fail("put player", err)
	}
	return nil
}

// ListPlayers returns every player ordered by uid.
func (s *Store) ListPlayers(ctx context.Context) ([]model.Player, error) {
	rows, err := s.query(ctx, selectPlayers().OrderBy(quote("uid")))
	if err != nil {
		return nil, s.fail("list players", err)
	}
	defer rows.Close()

	var players []model.Player
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, s.fail("scan player", err)
		}
		players = append(players, p)
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail("list players", err)
	}
	return players, nil
}
