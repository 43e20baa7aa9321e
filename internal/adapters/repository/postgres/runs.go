package postgres

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/okian/runboard/internal/adapters/repository"
	"github.com/okian/runboard/internal/domain/model"
)

// runColumns in scan order.
var runColumns = []string{ //nolint:gochecknoglobals // read-only column list
	"id",
	model.FieldPlayerID, model.FieldPlayer2ID, model.FieldPlayerName, model.FieldPlayer2Name,
	model.FieldCategory, model.FieldPlatform, model.FieldLevel,
	model.FieldRunType, model.FieldLeaderboardType,
	model.FieldTime, model.FieldDate,
	model.FieldVerified, model.FieldVerifiedBy, model.FieldIsObsolete,
	model.FieldRank, model.FieldPoints,
	model.FieldImportedFromSRC, model.FieldSRCRunID,
	model.FieldSRCCategoryName, model.FieldSRCPlatformName, model.FieldSRCLevelName,
	model.FieldSRCPlayerName, model.FieldSRCPlayer2Name,
	model.FieldSubmittedAt,
}

func selectRuns() sq.SelectBuilder {
	cols := make([]string, len(runColumns))
	for i, c := range runColumns {
		cols[i] = quote(c)
	}
	return psql.Select(cols...).From("runs")
}

// runFilter turns a RunFilter into a WHERE clause.
func runFilter(f model.RunFilter) sq.Eq {
	eq := sq.Eq{}
	if f.LeaderboardType != "" {
		eq[quote(model.FieldLeaderboardType)] = string(f.LeaderboardType)
	}
	if f.Category != nil {
		eq[quote(model.FieldCategory)] = *f.Category
	}
	if f.Platform != nil {
		eq[quote(model.FieldPlatform)] = *f.Platform
	}
	if f.RunType != "" {
		eq[quote(model.FieldRunType)] = string(f.RunType)
	}
	if f.Level != nil {
		eq[quote(model.FieldLevel)] = *f.Level
	}
	if f.Verified != nil {
		eq[quote(model.FieldVerified)] = *f.Verified
	}
	if f.PlayerID != "" {
		eq[quote(model.FieldPlayerID)] = f.PlayerID
	}
	if f.Player2ID != "" {
		eq[quote(model.FieldPlayer2ID)] = f.Player2ID
	}
	return eq
}

// runValues validates fields against the run model and converts them to
// column values.
func runValues(fields model.Fields) (map[string]any, []string, error) {
	var scratch model.Run
	if err := model.ApplyRun(&scratch, fields); err != nil {
		return nil, nil, err
	}
	values := make(map[string]any, len(fields))
	cols := make([]string, 0, len(fields))
	for key, v := range fields {
		switch x := v.(type) {
		case model.RunType:
			v = string(x)
		case model.LeaderboardType:
			v = string(x)
		case *int:
			if x == nil {
				v = nil
			} else {
				v = *x
			}
		}
		values[quote(key)] = v
		cols = append(cols, key)
	}
	sort.Strings(cols)
	return values, cols, nil
}

func scanRun(row pgx.Row) (model.Run, error) {
	var (
		r           model.Run
		rank        *int32
		runType     string
		lbType      string
		submittedAt time.Time
	)
	err := row.Scan(
		&r.ID,
		&r.PlayerID, &r.Player2ID, &r.PlayerName, &r.Player2Name,
		&r.Category, &r.Platform, &r.Level,
		&runType, &lbType,
		&r.Time, &r.Date,
		&r.Verified, &r.VerifiedBy, &r.IsObsolete,
		&rank, &r.Points,
		&r.ImportedFromSRC, &r.SRCRunID,
		&r.SRCCategoryName, &r.SRCPlatformName, &r.SRCLevelName,
		&r.SRCPlayerName, &r.SRCPlayer2Name,
		&submittedAt,
	)
	if err != nil {
		return model.Run{}, err
	}
	r.RunType = model.RunType(runType)
	r.LeaderboardType = model.LeaderboardType(lbType)
	if rank != nil {
		r.Rank = model.IntPtr(int(*rank))
	}
	r.SubmittedAt = submittedAt.UTC()
	return r, nil
}

// FindRuns returns the runs matching filter ordered by id.
func (s *Store) FindRuns(ctx context.Context, filter model.RunFilter) ([]model.Run, error) {
	rows, err := s.query(ctx, selectRuns().Where(runFilter(filter)).OrderBy(quote("id")))
	if err != nil {
		return nil, s.fail("find runs", err)
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, s.fail("scan run", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail("find runs", err)
	}
	return runs, nil
}

// GetRun returns a run by id.
func (s *Store) GetRun(ctx context.Context, id string) (model.Run, error) {
	row, err := s.row(ctx, selectRuns().Where(sq.Eq{quote("id"): id}))
	if err != nil {
		return model.Run{}, err
	}
	r, err := scanRun(row)
	if err != nil {
		if nf := notFound(err, "run", id); nf != nil {
			return model.Run{}, nf
		}
		return model.Run{}, s.fail("get run", err)
	}
	return r, nil
}

// PutRun merges fields into the run, creating it when absent.
func (s *Store) PutRun(ctx context.Context, id string, fields model.Fields) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: empty run id", repository.ErrInvalidID)
	}
	values, cols, err := runValues(fields)
	if err != nil {
		return err
	}
	values[quote("id")] = id

	q := psql.Insert("runs").SetMap(values).Suffix(upsertSuffix("id", cols))
	if _, err := s.exec(ctx, q); err != nil {
		return s.fail("put run", err)
	}
	return nil
}

// PutRuns updates existing runs in one round trip. Unknown ids and invalid
// fields are reported in a *model.PartialBatchFailure. A database error
// aborts the implicit transaction, so it fails the whole batch.
func (s *Store) PutRuns(ctx context.Context, writes []model.RunWrite) error {
	var pf model.PartialBatchFailure
	batch := &pgx.Batch{}
	var queued []string

	for _, w := range writes {
		values, _, err := runValues(w.Fields)
		if err != nil {
			pf.Failed = append(pf.Failed, w.ID)
			pf.Errors = append(pf.Errors, fmt.Sprintf("run %s: %v", w.ID, err))
			continue
		}

		var q sq.Sqlizer = psql.Update("runs").SetMap(values).Where(sq.Eq{quote("id"): w.ID})
		if len(values) == 0 {
			q = psql.Select("1").From("runs").Where(sq.Eq{quote("id"): w.ID})
		}
		sql, args, err := q.ToSql()
		if err != nil {
			return fmt.Errorf("build query: %w", err)
		}
		batch.Queue(sql, args...)
		queued = append(queued, w.ID)
	}

	if len(queued) > 0 {
		results := s.pool.SendBatch(ctx, batch)
		for _, id := range queued {
			tag, err := results.Exec()
			if err != nil {
				_ = results.Close()
				return s.fail("put runs", err)
			}
			if tag.RowsAffected() == 0 {
				pf.Failed = append(pf.Failed, id)
				pf.Errors = append(pf.Errors, model.NotFound("run", id).Error())
				continue
			}
			pf.Updated++
		}
		if err := results.Close(); err != nil {
			return s.fail("put runs", err)
		}
	}

	if len(pf.Failed) > 0 {
		return &pf
	}
	return nil
}

// DeleteRun removes a run.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	tag, err := s.exec(ctx, psql.Delete("runs").Where(sq.Eq{quote("id"): id}))
	if err != nil {
		return s.fail("delete run", err)
	}
	if tag.RowsAffected() == 0 {
		return model.NotFound("run", id)
	}
	return nil
}
