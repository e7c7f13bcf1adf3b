package service

import (
	"time"

	"github.com/okian/standings/internal/adapters/fetch"
	"github.com/okian/standings/internal/domain/ranking"
	"github.com/okian/standings/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithFetcher sets the source of raw leaderboard text.
func WithFetcher(f fetch.Fetcher) Option {
	return func(s *Service) {
		if f != nil {
			s.fetcher = f
		}
	}
}

// WithRowLimit caps how many ranked rows are kept per competition.
func WithRowLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.rowLimit = n
		}
	}
}

// WithScoreOrder selects whether higher or lower scores rank first.
func WithScoreOrder(o ranking.Order) Option {
	return func(s *Service) {
		s.order = o
	}
}

// WithFetchTimeout bounds each fetch.
func WithFetchTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.fetchTimeout = d
		}
	}
}

// WithShardCount sets the cache store's shard count.
func WithShardCount(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.shardCount = n
		}
	}
}

// WithQueueSize bounds the number of undelivered update events.
func WithQueueSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.queueSize = n
		}
	}
}

// WithBroadcastWorkers sets the number of event dispatchers.
func WithBroadcastWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.broadcastWorkers = n
		}
	}
}

// WithSubscriberBuffer sets each subscriber's channel depth.
func WithSubscriberBuffer(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.subscriberBuffer = n
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}
