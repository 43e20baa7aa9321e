package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/okian/runboard/internal/adapters/http/api"
	"github.com/okian/runboard/internal/adapters/jobs"
	"github.com/okian/runboard/internal/adapters/repository"
	"github.com/okian/runboard/internal/adapters/repository/postgres"
	service "github.com/okian/runboard/internal/app"
	"github.com/okian/runboard/internal/config"
	"github.com/okian/runboard/internal/domain/model"
	"github.com/okian/runboard/internal/seed"
	"github.com/okian/runboard/pkg/logger"
)

// migrate applies the store schema and the job queue tables.
func migrate(c *cli.Context) error {
	cfg, err := setup(c)
	if err != nil {
		return err
	}
	if cfg.Store.Backend != config.BackendPostgres {
		return errors.Join(config.ErrInvalidConfig, errors.New("migrate needs the postgres backend"))
	}
	// Open applies the schema.
	pg, err := postgres.Open(c.Context, cfg.Store.DSN, postgres.WithMaxConns(cfg.Store.MaxConns))
	if err != nil {
		return err
	}
	defer func() { _ = pg.Close() }()
	if err := jobs.Migrate(c.Context, pg.Pool()); err != nil {
		return err
	}
	logger.Get().Info(c.Context, "migrations applied")
	return nil
}

// One-shot commands recompute inline and never leave work queued.
func oneShot(c *cli.Context) (*deps, error) {
	cfg, err := setup(c)
	if err != nil {
		return nil, err
	}
	cfg.Jobs.Durable = false
	return build(c.Context, cfg, service.WithInlineCascade())
}

func recalc(c *cli.Context) error {
	rt, err := oneShot(c)
	if err != nil {
		return err
	}
	defer rt.close()

	rep, err := rt.svc.Sweep(c.Context, c.Bool("resume"))
	if err != nil {
		return err
	}
	return printJSON(c, rep)
}

func migrateThresholds(c *cli.Context) error {
	rt, err := oneShot(c)
	if err != nil {
		return err
	}
	defer rt.close()

	changed, err := rt.svc.MigrateThresholds(c.Context)
	if err != nil {
		return err
	}
	return printJSON(c, changed)
}

// seedData writes generated references, players and runs straight to the
// store, then sweeps so ranks, points and totals are consistent.
func seedData(c *cli.Context) error {
	rt, err := oneShot(c)
	if err != nil {
		return err
	}
	defer rt.close()

	gen := seed.NewGenerator(c.Uint64("seed"))
	players := gen.Players(c.Int("players"))
	runs := gen.Runs(c.Int("runs"), players)
	if err := load(c.Context, rt.store, gen, players, runs); err != nil {
		return err
	}

	rep, err := rt.svc.Sweep(c.Context, false)
	if err != nil {
		return err
	}
	logger.Get().Info(c.Context, "seeded",
		logger.Int("players", len(players)),
		logger.Int("runs", len(runs)),
		logger.Int("groups", rep.Groups),
	)
	return printJSON(c, rep)
}

func load(ctx context.Context, store repository.Store, gen *seed.Generator, players []model.Player, runs []model.Run) error {
	refs := append(append(gen.Categories(), gen.Platforms()...), gen.Levels()...)
	for _, ref := range refs {
		if err := store.PutReference(ctx, ref); err != nil {
			return fmt.Errorf("seed reference %s: %w", ref.ID, err)
		}
	}
	for _, p := range players {
		if err := store.PutPlayer(ctx, p.UID, model.PlayerFieldsOf(p)); err != nil {
			return fmt.Errorf("seed player %s: %w", p.UID, err)
		}
	}
	for _, r := range runs {
		if err := store.PutRun(ctx, r.ID, model.RunFieldsOf(r)); err != nil {
			return fmt.Errorf("seed run %s: %w", r.ID, err)
		}
	}
	return nil
}

func issueToken(c *cli.Context) error {
	cfg, err := setup(c)
	if err != nil {
		return err
	}
	if cfg.Auth.JWTSecret == "" {
		return errors.Join(config.ErrInvalidConfig, errors.New("auth.jwt_secret is empty"))
	}
	auth := api.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	token, err := auth.IssueToken(c.String("subject"), c.String("role"), c.Duration("ttl"))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(c.App.Writer, token)
	return err
}

func printJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
