package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/standings/internal/adapters/fetch"
	app "github.com/okian/standings/internal/app"
	"github.com/okian/standings/internal/config"
	"github.com/okian/standings/internal/domain/ranking"
	"github.com/okian/standings/pkg/logger"
)

// newRootCmd builds the command tree.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "standings",
		Short:        "Competition leaderboard cache and broadcaster",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Usage()
		},
	}

	root.AddCommand(newServeCmd(), newShowCmd(), newWatchCmd())
	return root
}

// setup loads configuration and initializes the global logger writing to out.
func setup(ctx context.Context, out io.Writer) (*config.Config, logger.Logger, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat), logger.WithOutput(out)); err != nil {
		return nil, nil, fmt.Errorf("init logging: %w", err)
	}
	log := logger.Get()

	// Fall back to info on an invalid level rather than refusing to start.
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info",
			logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	return cfg, log, nil
}

// newFetcher picks the ranking source adapter for cfg.FetchMode.
func newFetcher(cfg *config.Config, log logger.Logger) (fetch.Fetcher, error) {
	switch cfg.FetchMode {
	case config.FetchModeCommand:
		return fetch.NewCommandFetcher(cfg.FetchCommand, cfg.FetchArgs,
			fetch.WithCommandLogger(log.Named("fetch"))), nil
	case config.FetchModeHTTP:
		// The pipeline applies the fetch deadline; this one only guards
		// against a client that outlives it.
		client := &http.Client{Timeout: cfg.FetchTimeout() + time.Second}
		return fetch.NewHTTPFetcher(cfg.FetchURL, client), nil
	default:
		return nil, fmt.Errorf("%w: unknown fetch_mode %q", config.ErrInvalidConfig, cfg.FetchMode)
	}
}

// newService wires the pipeline from configuration. The caller starts it.
func newService(cfg *config.Config, log logger.Logger) (*app.Service, error) {
	fetcher, err := newFetcher(cfg, log)
	if err != nil {
		return nil, err
	}
	order, err := ranking.ParseOrder(cfg.ScoreOrder)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
	}

	return app.New(
		app.WithLogger(log.Named("service")),
		app.WithFetcher(fetcher),
		app.WithRowLimit(cfg.RowLimit),
		app.WithScoreOrder(order),
		app.WithFetchTimeout(cfg.FetchTimeout()),
		app.WithShardCount(cfg.ShardCount),
		app.WithQueueSize(cfg.BroadcastQueueSize),
		app.WithBroadcastWorkers(cfg.BroadcastWorkers),
		app.WithSubscriberBuffer(cfg.SubscriberBuffer),
	), nil
}
