// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() initializer to build a Config with defaults.
// - Loading functions accept context.Context as the first parameter.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Fetch modes.
const (
	FetchModeCommand = "command"
	FetchModeHTTP    = "http"
)

// Score orders.
const (
	ScoreOrderDesc = "desc"
	ScoreOrderAsc  = "asc"
)

// LastUpdatedLayout is the wire format of last_updated timestamps.
const LastUpdatedLayout = "2006-01-02 15:04:05"

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":5001".
	Addr string `koanf:"addr"`

	// RowLimit caps the number of ranked entries kept per competition.
	RowLimit int `koanf:"row_limit"`

	// ScoreOrder is "desc" when higher scores rank first, "asc" otherwise.
	ScoreOrder string `koanf:"score_order"`

	// FetchMode picks the ranking source adapter: command or http.
	FetchMode string `koanf:"fetch_mode"`

	// FetchCommand and FetchArgs describe the CLI invocation. Arguments may
	// contain {competition} and {limit} placeholders.
	FetchCommand string   `koanf:"fetch_command"`
	FetchArgs    []string `koanf:"fetch_args"`

	// FetchURL is the HTTP source template used when FetchMode is http.
	FetchURL string `koanf:"fetch_url"`

	// FetchTimeoutMS bounds a single fetch.
	FetchTimeoutMS int `koanf:"fetch_timeout_ms"`

	// ShardCount configures the number of shards in the cache store.
	ShardCount int `koanf:"shard_count"`

	// BroadcastQueueSize bounds the in-memory event queue feeding subscribers.
	BroadcastQueueSize int `koanf:"broadcast_queue_size"`

	// BroadcastWorkers sets the number of fan-out workers.
	BroadcastWorkers int `koanf:"broadcast_workers"`

	// SubscriberBuffer is the per-subscriber event buffer.
	SubscriberBuffer int `koanf:"subscriber_buffer"`

	// RefreshSchedule is a cron expression ("@every 5m" works too). Empty disables it.
	RefreshSchedule string `koanf:"refresh_schedule"`

	// RefreshCompetitions lists competitions refreshed by the scheduler.
	RefreshCompetitions []string `koanf:"refresh_competitions"`

	// CORSAllowedOrigins is echoed in Access-Control-Allow-Origin for /api routes.
	CORSAllowedOrigins string `koanf:"cors_allowed_origins"`

	// DefaultLastUpdated is reported for competitions never updated.
	DefaultLastUpdated string `koanf:"default_last_updated"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:           "info",
		LogFormat:          "text",
		Addr:               ":5001",
		RowLimit:           50,
		ScoreOrder:         ScoreOrderDesc,
		FetchMode:          FetchModeCommand,
		FetchCommand:       "kaggle",
		FetchArgs:          []string{"competitions", "leaderboard", "-c", "{competition}", "--show"},
		FetchTimeoutMS:     30_000,
		ShardCount:         8,
		BroadcastQueueSize: 1024,
		BroadcastWorkers:   1,
		SubscriberBuffer:   16,
		CORSAllowedOrigins: "*",
		DefaultLastUpdated: "2025-03-01 00:00:00",
	}
}

// FetchTimeout returns FetchTimeoutMS as a duration.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutMS) * time.Millisecond
}

// DefaultLastUpdatedTime parses DefaultLastUpdated.
func (c *Config) DefaultLastUpdatedTime() (time.Time, error) {
	t, err := time.ParseInLocation(LastUpdatedLayout, c.DefaultLastUpdated, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: default_last_updated: %w", ErrInvalidConfig, err)
	}
	return t, nil
}

// Validate checks the values that the service cannot recover from.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.RowLimit < 1:
		return fmt.Errorf("%w: row_limit must be positive", ErrInvalidConfig)
	case c.FetchTimeoutMS < 1:
		return fmt.Errorf("%w: fetch_timeout_ms must be positive", ErrInvalidConfig)
	}

	switch strings.ToLower(c.ScoreOrder) {
	case ScoreOrderDesc, ScoreOrderAsc:
	default:
		return fmt.Errorf("%w: score_order must be %q or %q, got %q", ErrInvalidConfig, ScoreOrderDesc, ScoreOrderAsc, c.ScoreOrder)
	}

	switch c.FetchMode {
	case FetchModeCommand:
		if strings.TrimSpace(c.FetchCommand) == "" {
			return fmt.Errorf("%w: fetch_command must not be empty", ErrInvalidConfig)
		}
	case FetchModeHTTP:
		if strings.TrimSpace(c.FetchURL) == "" {
			return fmt.Errorf("%w: fetch_url must not be empty in http mode", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown fetch_mode %q", ErrInvalidConfig, c.FetchMode)
	}

	if _, err := c.DefaultLastUpdatedTime(); err != nil {
		return err
	}
	return nil
}
