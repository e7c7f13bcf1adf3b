package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/standings/internal/config"
	"github.com/okian/standings/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":5001")
				convey.So(cfg.RowLimit, convey.ShouldEqual, 50)
				convey.So(cfg.ScoreOrder, convey.ShouldEqual, "desc")
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("STANDINGS_ADDR", ":8080")
			_ = os.Setenv("STANDINGS_ROW_LIMIT", "20")
			_ = os.Setenv("STANDINGS_SCORE_ORDER", "ASC")
			_ = os.Setenv("STANDINGS_FETCH_TIMEOUT_MS", "1500")
			_ = os.Setenv("STANDINGS_REFRESH_COMPETITIONS", "titanic, house-prices ,")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.RowLimit, convey.ShouldEqual, 20)
				convey.So(cfg.ScoreOrder, convey.ShouldEqual, "asc")
				convey.So(cfg.FetchTimeout(), convey.ShouldEqual, 1500*time.Millisecond)
				convey.So(cfg.RefreshCompetitions, convey.ShouldResemble, []string{"titanic", "house-prices"})
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			yamlContent := `
addr: ":9090"
row_limit: 10
fetch_mode: http
fetch_url: "http://source.local/{competition}?limit={limit}"
refresh_schedule: "@every 5m"
refresh_competitions:
  - titanic
  - digit-recognizer
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("STANDINGS_CONFIG", tmpFile)

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from YAML file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.RowLimit, convey.ShouldEqual, 10)
				convey.So(cfg.FetchMode, convey.ShouldEqual, config.FetchModeHTTP)
				convey.So(cfg.FetchURL, convey.ShouldEqual, "http://source.local/{competition}?limit={limit}")
				convey.So(cfg.RefreshSchedule, convey.ShouldEqual, "@every 5m")
				convey.So(cfg.RefreshCompetitions, convey.ShouldResemble, []string{"titanic", "digit-recognizer"})
			})

			convey.Convey("And missing fields keep their defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.ShardCount, convey.ShouldEqual, 8)
				convey.So(cfg.FetchCommand, convey.ShouldEqual, "kaggle")
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			yamlContent := `
addr: ":9090"
row_limit: 10
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("STANDINGS_CONFIG", tmpFile)
			_ = os.Setenv("STANDINGS_ADDR", ":8080")

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080") // Overridden by env
				convey.So(cfg.RowLimit, convey.ShouldEqual, 10)  // From file
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("STANDINGS_CONFIG", tmpFile)

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("STANDINGS_CONFIG", "/non/existent/file.yaml")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with empty addr", func() {
			_ = os.Setenv("STANDINGS_ADDR", "")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("STANDINGS_ROW_LIMIT", "invalid")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with an unknown score order", func() {
			_ = os.Setenv("STANDINGS_SCORE_ORDER", "random")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should be rejected", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "score_order")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

func TestConfigWatch(t *testing.T) {
	convey.Convey("Given a watched config file", t, func() {
		clearConfigEnvVars()
		dir := t.TempDir()
		path := filepath.Join(dir, "standings.yaml")
		convey.So(os.WriteFile(path, []byte("log_level: info\n"), 0o600), convey.ShouldBeNil)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		reloaded := make(chan *config.Config, 4)
		done := make(chan error, 1)
		go func() {
			done <- config.Watch(ctx, path, logger.Nop(), func(c *config.Config) { reloaded <- c })
		}()

		convey.Convey("When the file is rewritten with a new level", func() {
			// Give the watcher a moment to register before writing.
			time.Sleep(100 * time.Millisecond)
			convey.So(os.WriteFile(path, []byte("log_level: debug\n"), 0o600), convey.ShouldBeNil)

			convey.Convey("Then onChange receives the new config", func() {
				// A truncate may surface first as an empty (default) config.
				level := ""
				deadline := time.After(3 * time.Second)
			wait:
				for level != "debug" {
					select {
					case c := <-reloaded:
						level = c.LogLevel
					case <-deadline:
						break wait
					}
				}
				convey.So(level, convey.ShouldEqual, "debug")
				cancel()
				convey.So(<-done, convey.ShouldBeNil)
			})
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	envVars := []string{
		"STANDINGS_CONFIG",
		"STANDINGS_ADDR",
		"STANDINGS_ROW_LIMIT",
		"STANDINGS_SCORE_ORDER",
		"STANDINGS_FETCH_TIMEOUT_MS",
		"STANDINGS_REFRESH_COMPETITIONS",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "standings-config-*.yaml")
	if err != nil {
		panic(err)
	}

	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}

	if err := tmpFile.Close(); err != nil {
		panic(err)
	}

	return tmpFile.Name()
}
