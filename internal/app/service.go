// Package service runs the standings pipeline (fetch, parse, rank,
// commit, broadcast) and the read path the HTTP API depends on.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"

	"golang.org/x/sync/singleflight"

	"github.com/okian/standings/internal/adapters/fetch"
	"github.com/okian/standings/internal/adapters/mq/broadcast"
	"github.com/okian/standings/internal/adapters/repository"
	"github.com/okian/standings/internal/domain/model"
	"github.com/okian/standings/internal/domain/parser"
	"github.com/okian/standings/internal/domain/ranking"
	"github.com/okian/standings/pkg/logger"
	"github.com/okian/standings/pkg/metrics"
)

// Default service configuration.
const (
	defaultRowLimit         = 50
	defaultFetchTimeout     = 30 * time.Second
	defaultShardCount       = 8
	defaultQueueSize        = 1024
	defaultBroadcastWorkers = 1
	defaultSubscriberBuffer = 16
	maxCompetitionLength    = 256
	stopTimeout             = 5 * time.Second
)

// Pipeline outcomes recorded on the pipeline_runs_total metric.
const (
	outcomeSuccess    = "success"
	outcomeFetchError = "fetch_error"
	outcomeCommit     = "commit_error"
)

// Service owns the cache store and broadcaster and serializes pipeline
// runs per competition.
type Service struct {
	mu sync.RWMutex

	// Core components, built by Start.
	store       *repository.ShardedStore
	broadcaster *broadcast.Broadcaster
	ranker      *ranking.Ranker
	fetcher     fetch.Fetcher
	pipeline    fetch.Fetcher // fetcher bounded by fetchTimeout

	locks  *keyLock
	flight singleflight.Group

	// Configuration
	rowLimit         int
	order            ranking.Order
	fetchTimeout     time.Duration
	shardCount       int
	queueSize        int
	broadcastWorkers int
	subscriberBuffer int
	now              func() time.Time

	started bool
	logger  logger.Logger
}

// New constructs a Service. Nothing runs until Start.
func New(opts ...Option) *Service {
	s := &Service{
		rowLimit:         defaultRowLimit,
		order:            ranking.Descending,
		fetchTimeout:     defaultFetchTimeout,
		shardCount:       defaultShardCount,
		queueSize:        defaultQueueSize,
		broadcastWorkers: defaultBroadcastWorkers,
		subscriberBuffer: defaultSubscriberBuffer,
		now:              time.Now,
		locks:            newKeyLock(),
		logger:           logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.fetcher == nil {
		s.fetcher = fetch.NewCommandFetcher("kaggle",
			[]string{"competitions", "leaderboard", "-c", fetch.PlaceholderCompetition, "--show"},
			fetch.WithCommandLogger(s.logger))
	}
	return s
}

// Start builds the store and starts the broadcast dispatchers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.logger.Info(ctx, "starting standings service...")

	s.store = repository.NewShardedStore(ctx,
		repository.WithShardCount(s.shardCount),
		repository.WithMetricsUpdateInterval(metrics.RefreshInterval()),
	)
	s.ranker = ranking.New(ranking.WithOrder(s.order))
	s.pipeline = fetch.WithTimeout(s.fetcher, s.fetchTimeout)
	s.broadcaster = broadcast.New(
		broadcast.WithQueueSize(s.queueSize),
		broadcast.WithWorkers(s.broadcastWorkers),
		broadcast.WithBuffer(s.subscriberBuffer),
		broadcast.WithLogger(s.logger.Named("broadcast")),
	)
	s.broadcaster.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "standings service started",
		logger.Int("rowLimit", s.rowLimit),
		logger.String("scoreOrder", s.order.String()),
		logger.Duration("fetchTimeout", s.fetchTimeout),
		logger.Int("shards", s.shardCount),
		logger.Int("broadcastWorkers", s.broadcastWorkers),
	)
	return nil
}

// Stop shuts down the broadcaster and the store's background work.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	s.logger.Info(ctx, "stopping standings service...")

	if err := s.broadcaster.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "broadcaster shutdown incomplete", logger.Error(err))
	}
	_ = s.store.Close()

	s.started = false
	s.logger.Info(ctx, "standings service stopped")
}

// ValidateCompetition rejects identifiers that cannot be a competition
// slug: empty, overly long, or containing whitespace or control characters.
func ValidateCompetition(competition string) error {
	if competition == "" {
		return fmt.Errorf("%w: empty", ErrInvalidCompetition)
	}
	if len(competition) > maxCompetitionLength {
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidCompetition, maxCompetitionLength)
	}
	if strings.IndexFunc(competition, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsControl(r)
	}) >= 0 {
		return fmt.Errorf("%w: %q contains whitespace or control characters", ErrInvalidCompetition, competition)
	}
	return nil
}

type components struct {
	store       *repository.ShardedStore
	broadcaster *broadcast.Broadcaster
	ranker      *ranking.Ranker
	pipeline    fetch.Fetcher
}

func (s *Service) components() (components, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return components{}, ErrNotStarted
	}
	return components{
		store:       s.store,
		broadcaster: s.broadcaster,
		ranker:      s.ranker,
		pipeline:    s.pipeline,
	}, nil
}

// Update runs the pipeline for one competition and returns the newly
// committed record. Runs for the same competition are serialized; runs
// for different competitions never wait on each other. On failure the
// cached record, if any, is left untouched.
//
// ctx only bounds the wait for the competition's lock. Once the run has
// begun it completes even if the caller goes away.
func (s *Service) Update(ctx context.Context, competition string) (model.Record, error) {
	if err := ValidateCompetition(competition); err != nil {
		return model.Record{}, err
	}
	c, err := s.components()
	if err != nil {
		return model.Record{}, err
	}

	unlock, err := s.locks.Lock(ctx, competition)
	if err != nil {
		return model.Record{}, fmt.Errorf("wait for %s update: %w", competition, err)
	}
	defer unlock()

	return s.run(context.WithoutCancel(ctx), c, competition)
}

func (s *Service) run(ctx context.Context, c components, competition string) (model.Record, error) {
	start := time.Now()
	log := s.logger.Named("pipeline")

	text, err := c.pipeline.Fetch(ctx, competition, s.rowLimit)
	if err != nil {
		metrics.RecordPipelineRun(outcomeFetchError, float64(time.Since(start).Milliseconds()))
		log.Error(ctx, "fetch failed; cache left untouched",
			logger.String("competition", competition),
			logger.Error(err))
		return model.Record{}, err
	}

	parsed := parser.Parse(text)
	metrics.RecordParseSkipped(parsed.Skipped)
	entries := c.ranker.Rank(parsed.Entries, s.rowLimit)
	metrics.RecordRankedEntries(len(entries))

	rec := model.Record{
		Competition: competition,
		Entries:     entries,
		LastUpdated: s.now(),
		RowLimit:    s.rowLimit,
	}
	// lastUpdated never moves backwards, even if the wall clock does.
	if prev, err := c.store.Get(ctx, competition); err == nil && rec.LastUpdated.Before(prev.LastUpdated) {
		rec.LastUpdated = prev.LastUpdated
	}

	if err := c.store.Commit(ctx, rec); err != nil {
		metrics.RecordPipelineRun(outcomeCommit, float64(time.Since(start).Milliseconds()))
		return model.Record{}, fmt.Errorf("commit %s: %w", competition, err)
	}

	c.broadcaster.Publish(ctx, model.NewEvent(rec))

	metrics.RecordPipelineRun(outcomeSuccess, float64(time.Since(start).Milliseconds()))
	log.Info(ctx, "leaderboard updated",
		logger.String("competition", competition),
		logger.Int("entries", len(entries)),
		logger.Int("skippedLines", parsed.Skipped),
		logger.Duration("took", time.Since(start)))
	return rec, nil
}

// Leaderboard returns the cached record for competition. On a miss it
// runs the pipeline once to populate the cache; concurrent misses for the
// same competition share that run and its error.
func (s *Service) Leaderboard(ctx context.Context, competition string) (model.Record, error) {
	if err := ValidateCompetition(competition); err != nil {
		return model.Record{}, err
	}
	c, err := s.components()
	if err != nil {
		return model.Record{}, err
	}

	rec, err := c.store.Get(ctx, competition)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return model.Record{}, err
	}

	detached := context.WithoutCancel(ctx)
	ch := s.flight.DoChan(competition, func() (any, error) {
		return s.populate(detached, c, competition)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return model.Record{}, res.Err
		}
		return res.Val.(model.Record).Clone(), nil //nolint:forcetypeassert // the flight only returns records
	case <-ctx.Done():
		return model.Record{}, ctx.Err()
	}
}

// populate runs the pipeline for a cache miss unless a trigger holding the
// competition's lock commits a record first.
func (s *Service) populate(ctx context.Context, c components, competition string) (model.Record, error) {
	unlock, err := s.locks.Lock(ctx, competition)
	if err != nil {
		return model.Record{}, err
	}
	defer unlock()

	if rec, err := c.store.Get(ctx, competition); err == nil {
		return rec, nil
	}
	s.logger.Debug(ctx, "populating leaderboard on first query",
		logger.String("competition", competition))
	return s.run(ctx, c, competition)
}

// Subscribe attaches a listener for update events until ctx is done.
func (s *Service) Subscribe(ctx context.Context) (broadcast.Subscription, error) {
	c, err := s.components()
	if err != nil {
		return broadcast.Subscription{}, err
	}
	return c.broadcaster.Subscribe(ctx)
}

// Competitions lists the cached competition identifiers.
func (s *Service) Competitions(ctx context.Context) []string {
	c, err := s.components()
	if err != nil {
		return nil
	}
	return c.store.Keys(ctx)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":          s.started,
		"rowLimit":         s.rowLimit,
		"scoreOrder":       s.order.String(),
		"fetchTimeoutMs":   s.fetchTimeout.Milliseconds(),
		"shardCount":       s.shardCount,
		"queueSize":        s.queueSize,
		"broadcastWorkers": s.broadcastWorkers,
	}

	if s.started {
		stats["competitions"] = s.store.Count(ctx)
		stats["subscribers"] = s.broadcaster.Subscribers()
		stats["pendingEvents"] = s.broadcaster.Pending(ctx)
		stats["activeUpdates"] = s.locks.held()
	}

	return stats
}
