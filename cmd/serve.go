package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/urfave/cli/v2"

	"github.com/okian/runboard/internal/adapters/http/api"
	"github.com/okian/runboard/internal/adapters/http/swagger"
	service "github.com/okian/runboard/internal/app"
	"github.com/okian/runboard/internal/config"
	"github.com/okian/runboard/pkg/logger"
	"github.com/okian/runboard/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout            = 10 * time.Second
	writeTimeout           = 30 * time.Second
	idleTimeout            = 60 * time.Second
	readHeaderTimeout      = 5 * time.Second
	shutdownTimeout        = 30 * time.Second
	systemMetricsInterval  = 10 * time.Second
	serviceMetricsInterval = 5 * time.Second
)

func serve(c *cli.Context) error {
	cfg, err := setup(c)
	if err != nil {
		return err
	}
	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := build(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.close()

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, rt.svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newRouter(ctx, cfg, rt.svc),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
	return nil
}

// newRouter mounts the business API and the API docs.
func newRouter(ctx context.Context, cfg *config.Config, svc *service.Service) chi.Router {
	opts := []api.Option{
		api.WithSubmitRate(cfg.Submit.RatePerSecond, cfg.Submit.Burst),
		api.WithLogger(logger.Get().Named("http")),
	}
	if cfg.Auth.JWTSecret != "" {
		opts = append(opts, api.WithAuth(api.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer)))
	} else {
		logger.Get().Warn(ctx, "auth.jwt_secret is empty; protected routes will answer 401")
	}
	r := api.NewServer(svc, svc, opts...).Routes()
	swagger.Register(ctx, r)
	return r
}

func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var m runtime.MemStats
			runtime.ReadMemStats(&m)
			metrics.UpdateSystemMemoryUsage(m.Alloc)
			metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
		}
	}
}

func startServiceMetricsUpdater(ctx context.Context, svc *service.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

// updateServiceMetrics copies the service stats onto the gauges.
func updateServiceMetrics(svc *service.Service) {
	stats := svc.GetStats()
	if v, ok := stats["queueLength"].(int); ok {
		metrics.UpdateQueueSize(v)
	}
	if v, ok := stats["workerCount"].(int); ok {
		metrics.UpdateWorkerCount(v)
	}
	if v, ok := stats["pending"].(int); ok {
		metrics.UpdatePendingSize(v)
	}
	if v, ok := stats["runs"].(int); ok {
		metrics.UpdateRunsTotal(v)
	}
	if v, ok := stats["players"].(int); ok {
		metrics.UpdatePlayersTotal(v)
	}
}
