package repository

import "time"

const (
	defaultShardCount            = 8
	defaultMetricsUpdateInterval = 5 * time.Second
)

// Option applies a configuration option to the ShardedStore.
type Option func(*ShardedStore)

// WithShardCount sets how many independently locked shards keys are spread over.
func WithShardCount(n int) Option {
	return func(s *ShardedStore) {
		if n > 0 {
			s.shardCount = n
		}
	}
}

// WithMetricsUpdateInterval sets the interval for background metrics updates.
func WithMetricsUpdateInterval(interval time.Duration) Option {
	return func(s *ShardedStore) {
		if interval > 0 {
			s.metricsUpdateInterval = interval
		}
	}
}
