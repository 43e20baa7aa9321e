package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"

	"github.com/okian/runboard/internal/adapters/jobs"
	"github.com/okian/runboard/internal/adapters/lock"
	"github.com/okian/runboard/internal/adapters/repository"
	"github.com/okian/runboard/internal/adapters/repository/postgres"
	service "github.com/okian/runboard/internal/app"
	"github.com/okian/runboard/internal/config"
	"github.com/okian/runboard/pkg/logger"
)

// deps holds everything a command needs, built from one Config.
type deps struct {
	cfg   *config.Config
	store repository.Store
	pg    *postgres.Store
	redis *redis.Client
	svc   *service.Service
}

// setup loads the config and initializes logging.
func setup(c *cli.Context) (*config.Config, error) {
	cfg, err := config.LoadFile(c.Context, c.String("config"))
	if err != nil {
		return nil, err
	}
	if err := logger.Init(logger.WithLevel(cfg.LogLevel), logger.WithFormat(cfg.LogFormat)); err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}
	return cfg, nil
}

// build opens the configured store and lock and starts a service on them.
func build(ctx context.Context, cfg *config.Config, extra ...service.Option) (*deps, error) {
	rt := &deps{cfg: cfg}
	log := logger.Get()

	switch cfg.Store.Backend {
	case config.BackendPostgres:
		pg, err := postgres.Open(ctx, cfg.Store.DSN,
			postgres.WithMaxConns(cfg.Store.MaxConns),
			postgres.WithDefaultPointsConfig(cfg.Points),
			postgres.WithLogger(log.Named("postgres")),
		)
		if err != nil {
			return nil, err
		}
		rt.pg, rt.store = pg, pg
	default:
		rt.store = repository.NewMemoryStore(ctx, repository.WithPointsConfig(cfg.Points))
	}

	opts := []service.Option{
		service.WithStore(rt.store),
		service.WithWorkerCount(cfg.WorkerCount),
		service.WithQueueSize(cfg.QueueSize),
		service.WithDedupeSize(cfg.DedupeSize),
		service.WithBatchSize(cfg.BatchSize),
		service.WithSweepRate(cfg.Sweep.Rate, cfg.Sweep.Burst),
		service.WithLogger(log.Named("service")),
	}

	if cfg.Redis.Addr != "" {
		rt.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		locker := lock.NewRedis(rt.redis,
			lock.WithTTL(cfg.Redis.LockTTL),
			lock.WithLogger(log.Named("lock")),
		)
		if err := locker.Ping(ctx); err != nil {
			rt.close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		opts = append(opts, service.WithLocker(locker))
	}

	if cfg.Jobs.Durable {
		if rt.pg == nil {
			rt.close()
			return nil, errors.Join(config.ErrInvalidConfig, errors.New("durable jobs need the postgres backend"))
		}
		if err := jobs.Migrate(ctx, rt.pg.Pool()); err != nil {
			rt.close()
			return nil, err
		}
		opts = append(opts, service.WithDurableJobs(rt.pg.Pool(), cfg.Jobs.MaxWorkers))
	}

	svc := service.New(append(opts, extra...)...)
	if err := svc.Start(ctx); err != nil {
		rt.close()
		return nil, fmt.Errorf("start service: %w", err)
	}
	rt.svc = svc
	return rt, nil
}

// close stops the service, which closes the store, and drops the Redis client.
func (rt *deps) close() {
	if rt.svc != nil {
		rt.svc.Stop()
	} else if rt.store != nil {
		_ = rt.store.Close()
	}
	if rt.redis != nil {
		_ = rt.redis.Close()
	}
}
