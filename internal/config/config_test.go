package config_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/standings/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":5001")
			convey.So(cfg.RowLimit, convey.ShouldEqual, 50)
			convey.So(cfg.ScoreOrder, convey.ShouldEqual, config.ScoreOrderDesc)
			convey.So(cfg.FetchMode, convey.ShouldEqual, config.FetchModeCommand)
			convey.So(cfg.FetchCommand, convey.ShouldEqual, "kaggle")
			convey.So(cfg.FetchArgs, convey.ShouldResemble, []string{"competitions", "leaderboard", "-c", "{competition}", "--show"})
			convey.So(cfg.FetchTimeout(), convey.ShouldEqual, 30*time.Second)
			convey.So(cfg.ShardCount, convey.ShouldEqual, 8)
			convey.So(cfg.CORSAllowedOrigins, convey.ShouldEqual, "*")
		})

		convey.Convey("And the defaults validate", func() {
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("And the default last-updated time parses", func() {
			ts, err := cfg.DefaultLastUpdatedTime()
			convey.So(err, convey.ShouldBeNil)
			convey.So(ts.Year(), convey.ShouldEqual, 2025)
			convey.So(ts.Month(), convey.ShouldEqual, time.March)
			convey.So(ts.Day(), convey.ShouldEqual, 1)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given a valid config", t, func() {
		cfg := config.New()

		cases := []struct {
			name   string
			mutate func(*config.Config)
		}{
			{"empty addr", func(c *config.Config) { c.Addr = " " }},
			{"zero row limit", func(c *config.Config) { c.RowLimit = 0 }},
			{"zero fetch timeout", func(c *config.Config) { c.FetchTimeoutMS = 0 }},
			{"unknown score order", func(c *config.Config) { c.ScoreOrder = "sideways" }},
			{"unknown fetch mode", func(c *config.Config) { c.FetchMode = "ftp" }},
			{"http mode without url", func(c *config.Config) { c.FetchMode = config.FetchModeHTTP }},
			{"command mode without command", func(c *config.Config) { c.FetchCommand = "" }},
			{"bad default timestamp", func(c *config.Config) { c.DefaultLastUpdated = "March 1st" }},
		}

		for _, tc := range cases {
			convey.Convey("When it has "+tc.name, func() {
				tc.mutate(cfg)

				convey.Convey("Then validation fails with ErrInvalidConfig", func() {
					err := cfg.Validate()
					convey.So(err, convey.ShouldNotBeNil)
					convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				})
			})
		}

		convey.Convey("When ascending order is configured", func() {
			cfg.ScoreOrder = config.ScoreOrderAsc

			convey.Convey("Then it validates", func() {
				convey.So(cfg.Validate(), convey.ShouldBeNil)
			})
		})
	})
}
