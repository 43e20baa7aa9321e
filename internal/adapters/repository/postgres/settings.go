package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/okian/runboard/internal/adapters/repository"
	"github.com/okian/runboard/internal/domain/model"
)

const pointsConfigID = 1

// GetPointsConfig returns the stored configuration, or the default one when
// none was stored yet.
func (s *Store) GetPointsConfig(ctx context.Context) (model.PointsConfig, error) {
	row, err := s.row(ctx, psql.Select(
		quote("base_multiplier"), quote("enabled"),
		quote("any_percent_threshold"), quote("nocuts_noships_threshold"),
		quote("first_place_bonus"), quote("second_place_bonus"), quote("third_place_bonus"),
		quote("threshold_bonus"),
	).From("points_config").Where(sq.Eq{quote("id"): pointsConfigID}))
	if err != nil {
		return model.PointsConfig{}, err
	}

	var c model.PointsConfig
	err = row.Scan(&c.BaseMultiplier, &c.Enabled,
		&c.AnyPercentThreshold, &c.NocutsNoshipsThreshold,
		&c.FirstPlaceBonus, &c.SecondPlaceBonus, &c.ThirdPlaceBonus,
		&c.ThresholdBonus)
	if err != nil {
		if notFound(err, "points_config", "") != nil {
			return s.defaultPoints, nil
		}
		return model.PointsConfig{}, s.fail("get points config", err)
	}
	return c, nil
}

// PutPointsConfig replaces the configuration.
func (s *Store) PutPointsConfig(ctx context.Context, c model.PointsConfig) error {
	values := map[string]any{
		"base_multiplier":          c.BaseMultiplier,
		"enabled":                  c.Enabled,
		"any_percent_threshold":    c.AnyPercentThreshold,
		"nocuts_noships_threshold": c.NocutsNoshipsThreshold,
		"first_place_bonus":        c.FirstPlaceBonus,
		"second_place_bonus":       c.SecondPlaceBonus,
		"third_place_bonus":        c.ThirdPlaceBonus,
		"threshold_bonus":          c.ThresholdBonus,
	}
	cols := make([]string, 0, len(values))
	quoted := make(map[string]any, len(values)+1)
	for k, v := range values {
		cols = append(cols, k)
		quoted[quote(k)] = v
	}
	quoted[quote("id")] = pointsConfigID

	q := psql.Insert("points_config").SetMap(quoted).Suffix(upsertSuffix("id", cols))
	if _, err := s.exec(ctx, q); err != nil {
		return s.fail("put points config", err)
	}
	return nil
}

func selectReferences() sq.SelectBuilder {
	return psql.Select(quote("kind"), quote("id"), quote("name"), quote("bonus_threshold_seconds")).
		From("run_references")
}

// GetReference returns a category, platform or level by id.
func (s *Store) GetReference(ctx context.Context, kind model.ReferenceKind, id string) (model.Reference, error) {
	row, err := s.row(ctx, selectReferences().Where(sq.Eq{quote("kind"): string(kind), quote("id"): id}))
	if err != nil {
		return model.Reference{}, err
	}
	var ref model.Reference
	var k string
	if err := row.Scan(&k, &ref.ID, &ref.Name, &ref.BonusThresholdSeconds); err != nil {
		if nf := notFound(err, string(kind), id); nf != nil {
			return model.Reference{}, nf
		}
		return model.Reference{}, s.fail("get reference", err)
	}
	ref.Kind = model.ReferenceKind(k)
	return ref, nil
}

// PutReference creates or replaces a reference.
func (s *Store) PutReference(ctx context.Context, ref model.Reference) error {
	if !ref.Kind.Valid() || strings.TrimSpace(ref.ID) == "" {
		return fmt.Errorf("%w: reference %s/%q", repository.ErrInvalidID, ref.Kind, ref.ID)
	}
	q := psql.Insert("run_references").
		Columns(quote("kind"), quote("id"), quote("name"), quote("bonus_threshold_seconds")).
		Values(string(ref.Kind), ref.ID, ref.Name, ref.BonusThresholdSeconds).
		Suffix(`ON CONFLICT ("kind", "id") DO UPDATE SET "name" = EXCLUDED."name", ` +
			`"bonus_threshold_seconds" = EXCLUDED."bonus_threshold_seconds"`)
	if _, err := s.exec(ctx, q); err != nil {
		return s.fail("put reference", err)
	}
	return nil
}

// ListReferences returns every reference of kind ordered by id.
func (s *Store) ListReferences(ctx context.Context, kind model.ReferenceKind) ([]model.Reference, error) {
	rows, err := s.query(ctx, selectReferences().Where(sq.Eq{quote("kind"): string(kind)}).OrderBy(quote("id")))
	if err != nil {
		return nil, s.fail("list references", err)
	}
	defer rows.Close()

	var refs []model.Reference
	for rows.Next() {
		var ref model.Reference
		var k string
		if err := rows.Scan(&k, &ref.ID, &ref.Name, &ref.BonusThresholdSeconds); err != nil {
			return nil, s.fail("scan reference", err)
		}
		ref.Kind = model.ReferenceKind(k)
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail("list references", err)
	}
	return refs, nil
}

// GetCheckpoint returns a named sweep checkpoint.
func (s *Store) GetCheckpoint(ctx context.Context, name string) (model.Checkpoint, error) {
	row, err := s.row(ctx, psql.Select(quote("phase"), quote("cursor"), quote("done"), quote("updated_at")).
		From("sweep_checkpoints").Where(sq.Eq{quote("name"): name}))
	if err != nil {
		return model.Checkpoint{}, err
	}
	var cp model.Checkpoint
	var updated time.Time
	if err := row.Scan(&cp.Phase, &cp.Cursor, &cp.Done, &updated); err != nil {
		if nf := notFound(err, "checkpoint", name); nf != nil {
			return model.Checkpoint{}, nf
		}
		return model.Checkpoint{}, s.fail("get checkpoint", err)
	}
	cp.UpdatedAt = updated.UTC()
	return cp, nil
}

// PutCheckpoint stores a named sweep checkpoint.
func (s *Store) PutCheckpoint(ctx context.Context, name string, cp model.Checkpoint) error {
	q := psql.Insert("sweep_checkpoints").
		Columns(quote("name"), quote("phase"), quote("cursor"), quote("done"), quote("updated_at")).
		Values(name, cp.Phase, cp.Cursor, cp.Done, cp.UpdatedAt).
		Suffix(upsertSuffix("name", []string{"cursor", "done", "phase", "updated_at"}))
	if _, err := s.exec(ctx, q); err != nil {
		return s.fail("put checkpoint", err)
	}
	return nil
}

// DeleteCheckpoint removes a named checkpoint. Missing ones are ignored.
func (s *Store) DeleteCheckpoint(ctx context.Context, name string) error {
	if _, err := s.exec(ctx, psql.Delete("sweep_checkpoints").Where(sq.Eq{quote("name"): name})); err != nil {
		return s.fail("delete checkpoint", err)
	}
	return nil
}
