package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/standings/internal/adapters/http/api"
	"github.com/okian/standings/internal/adapters/http/swagger"
	"github.com/okian/standings/internal/adapters/http/ws"
	"github.com/okian/standings/internal/adapters/scheduler"
	app "github.com/okian/standings/internal/app"
	"github.com/okian/standings/internal/config"
	"github.com/okian/standings/pkg/logger"
	"github.com/okian/standings/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "serve",
		Short:   "Run the HTTP API, WebSocket feed and scheduled refresh",
		Aliases: []string{"s", "start"},
		Example: "STANDINGS_ADDR=:5001 standings serve",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
}

func serve(ctx context.Context) error {
	cfg, log, err := setup(ctx, os.Stdout)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	svc, err := newService(cfg, log)
	if err != nil {
		return err
	}
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer svc.Stop()

	go startSystemMetricsUpdater(ctx)

	if path := os.Getenv(config.EnvConfigPath); path != "" {
		go func() {
			err := config.Watch(ctx, path, log.Named("config"), func(c *config.Config) {
				if err := logger.SetLevelString(c.LogLevel); err != nil {
					log.Warn(ctx, "ignoring invalid log_level from reload", logger.String("log_level", c.LogLevel))
				}
			})
			if err != nil {
				log.Error(ctx, "config watch stopped", logger.Error(err))
			}
		}()
	}

	switch {
	case cfg.RefreshSchedule == "":
	case len(cfg.RefreshCompetitions) == 0:
		log.Warn(ctx, "refresh_schedule set without refresh_competitions; scheduler disabled")
	default:
		sched, err := scheduler.New(cfg.RefreshSchedule, cfg.RefreshCompetitions, svc,
			scheduler.WithLogger(log.Named("scheduler")))
		if err != nil {
			return err
		}
		sched.Start(ctx)
		defer sched.Stop()
	}

	handler, err := newHandler(ctx, cfg, svc, log)
	if err != nil {
		return err
	}

	// WriteTimeout stays zero: update requests can legitimately run for
	// the whole fetch timeout and WebSocket connections are long-lived.
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadTimeout:       readTimeout,
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
			return fmt.Errorf("http server: %w", err)
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

// newHandler mounts every HTTP surface on one mux.
func newHandler(ctx context.Context, cfg *config.Config, svc *app.Service, log logger.Logger) (http.Handler, error) {
	defaultLastUpdated, err := cfg.DefaultLastUpdatedTime()
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	swagger.Register(ctx, mux)

	api.NewServer(svc, svc,
		api.WithDefaultLastUpdated(defaultLastUpdated),
		api.WithAllowedOrigins(cfg.CORSAllowedOrigins),
	).Register(ctx, mux)

	ws.New(svc,
		ws.WithLogger(log.Named("ws")),
		ws.WithCheckOrigin(ws.AllowOrigins(cfg.CORSAllowedOrigins)),
	).Register(ctx, mux)
	return mux, nil
}

// startSystemMetricsUpdater samples runtime stats until ctx is done.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}
