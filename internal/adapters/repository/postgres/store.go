// Package postgres implements the run store on PostgreSQL with pgx and
// squirrel-built queries.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okian/runboard/internal/adapters/repository"
	"github.com/okian/runboard/internal/domain/model"
	"github.com/okian/runboard/pkg/logger"
	"github.com/okian/runboard/pkg/metrics"
)

const (
	defaultMaxConns = 10
	connectTimeout  = 30 * time.Second
	pingInterval    = time.Second
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar) //nolint:gochecknoglobals // stateless builder

// Store is a repository.Store on a pgx pool.
type Store struct {
	pool          *pgxpool.Pool
	ownsPool      bool
	maxConns      int32
	defaultPoints model.PointsConfig
	logger        logger.Logger
}

var _ repository.Store = (*Store)(nil)

// Open connects to dsn, retrying until the database answers or 30 seconds
// pass, and applies the schema.
func Open(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	s := newStore(opts)
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConns = s.maxConns

	deadline := time.Now().Add(connectTimeout)
	for {
		s.pool, err = pgxpool.NewWithConfig(ctx, cfg)
		if err == nil {
			if err = s.pool.Ping(ctx); err == nil {
				break
			}
			s.pool.Close()
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		s.logger.Warn(ctx, "postgres not ready, retrying", logger.Error(err))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pingInterval):
		}
	}
	s.ownsPool = true

	if err := s.Migrate(ctx); err != nil {
		s.pool.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing pool. The caller keeps ownership of it.
func New(pool *pgxpool.Pool, opts ...Option) *Store {
	s := newStore(opts)
	s.pool = pool
	return s
}

func newStore(opts []Option) *Store {
	s := &Store{
		maxConns:      defaultMaxConns,
		defaultPoints: model.DefaultPointsConfig(),
		logger:        logger.Get().Named("postgres"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Pool exposes the underlying pool, for River and health checks.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// Migrate applies the schema.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the pool when the store opened it.
func (s *Store) Close() error {
	if s.ownsPool {
		s.pool.Close()
	}
	return nil
}

// Stats counts the stored records. Groups counts distinct groups among
// verified runs.
func (s *Store) Stats(ctx context.Context) (repository.Stats, error) {
	const q = `
SELECT
	(SELECT count(*) FROM runs),
	(SELECT count(*) FROM runs WHERE "verified"),
	(SELECT count(*) FROM players),
	(SELECT count(DISTINCT ("leaderboard_type",
		CASE WHEN "leaderboard_type" IN ('individual-level', 'community-golds') THEN "level" ELSE '' END,
		"category", "platform", "run_type")) FROM runs WHERE "verified")`

	var st repository.Stats
	if err := s.pool.QueryRow(ctx, q).Scan(&st.Runs, &st.Verified, &st.Players, &st.Groups); err != nil {
		return repository.Stats{}, s.fail("stats", err)
	}
	metrics.UpdateRunsTotal(st.Runs)
	metrics.UpdatePlayersTotal(st.Players)
	return st, nil
}

func (s *Store) exec(ctx context.Context, q sq.Sqlizer) (pgconn.CommandTag, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return pgconn.CommandTag{}, fmt.Errorf("build query: %w", err)
	}
	return s.pool.Exec(ctx, sql, args...)
}

func (s *Store) query(ctx context.Context, q sq.SelectBuilder) (pgx.Rows, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	return s.pool.Query(ctx, sql, args...)
}

func (s *Store) row(ctx context.Context, q sq.SelectBuilder) (pgx.Row, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	return s.pool.QueryRow(ctx, sql, args...), nil
}

// fail counts and wraps a database error.
func (s *Store) fail(op string, err error) error {
	metrics.RecordErrorByComponent("postgres", op)
	return fmt.Errorf("postgres %s: %w", op, err)
}

func notFound(err error, kind, id string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return model.NotFound(kind, id)
	}
	return nil
}

func quote(col string) string { return `"` + col + `"` }

// upsertSuffix builds the ON CONFLICT clause updating only cols.
func upsertSuffix(conflict string, cols []string) string {
	if len(cols) == 0 {
		return "ON CONFLICT (" + quote(conflict) + ") DO NOTHING"
	}
	out := "ON CONFLICT (" + quote(conflict) + ") DO UPDATE SET "
	for i, c := range cols {
		if i > 0 {
			out += ", "
		}
		out += quote(c) + " = EXCLUDED." + quote(c)
	}
	return out
}
