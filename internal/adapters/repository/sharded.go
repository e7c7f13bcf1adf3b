package repository

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/okian/standings/internal/domain/model"
	"github.com/okian/standings/pkg/metrics"
)

// slot holds one competition's record. The pointer is swapped atomically
// so readers see either the old or the new record, never a mix.
type slot struct {
	rec atomic.Pointer[model.Record]
}

type shard struct {
	mu    sync.RWMutex
	slots map[string]*slot
}

// ShardedStore is an in-memory Store. Replacing an existing key takes no
// lock at all; the shard lock is held only while a new key is inserted.
type ShardedStore struct {
	shards                []*shard
	shardCount            int
	metricsUpdateInterval time.Duration
	size                  atomic.Int64

	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
}

var _ Store = (*ShardedStore)(nil)

// NewShardedStore constructs the store and starts its metrics updater,
// which stops when ctx is done or Close is called.
func NewShardedStore(ctx context.Context, opts ...Option) *ShardedStore {
	s := &ShardedStore{
		shardCount:            defaultShardCount,
		metricsUpdateInterval: defaultMetricsUpdateInterval,
		stopChan:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.shards = make([]*shard, s.shardCount)
	for i := range s.shards {
		s.shards[i] = &shard{slots: make(map[string]*slot)}
	}

	metrics.UpdateCacheRecords(0)
	s.startMetricsUpdater(ctx)
	return s
}

func (s *ShardedStore) shardFor(key string) *shard {
	return s.shards[xxhash.Sum64String(key)%uint64(len(s.shards))]
}

func (s *ShardedStore) lookup(key string) *slot {
	sh := s.shardFor(key)
	sh.mu.RLock()
	sl := sh.slots[key]
	sh.mu.RUnlock()
	return sl
}

// Get implements Store.Get. The returned record is a private copy.
func (s *ShardedStore) Get(_ context.Context, competition string) (model.Record, error) {
	sl := s.lookup(competition)
	if sl == nil {
		metrics.RecordCacheMiss()
		return model.Record{}, fmt.Errorf("%w: %s", ErrNotFound, competition)
	}
	rec := sl.rec.Load()
	if rec == nil {
		metrics.RecordCacheMiss()
		return model.Record{}, fmt.Errorf("%w: %s", ErrNotFound, competition)
	}
	metrics.RecordCacheHit()
	return rec.Clone(), nil
}

// Commit implements Store.Commit.
func (s *ShardedStore) Commit(_ context.Context, rec model.Record) error {
	if strings.TrimSpace(rec.Competition) == "" {
		return fmt.Errorf("%w: empty competition", ErrInvalidRecord)
	}
	if rec.RowLimit > 0 && len(rec.Entries) > rec.RowLimit {
		return fmt.Errorf("%w: %d entries exceed row limit %d", ErrInvalidRecord, len(rec.Entries), rec.RowLimit)
	}

	stored := rec.Clone()
	if stored.Entries == nil {
		stored.Entries = []model.Entry{}
	}

	if sl := s.lookup(rec.Competition); sl != nil {
		sl.rec.Store(&stored)
		return nil
	}

	sh := s.shardFor(rec.Competition)
	sh.mu.Lock()
	sl, ok := sh.slots[rec.Competition]
	if !ok {
		sl = &slot{}
		sh.slots[rec.Competition] = sl
		s.size.Add(1)
	}
	sl.rec.Store(&stored)
	sh.mu.Unlock()

	if !ok {
		metrics.UpdateCacheRecords(int(s.size.Load()))
	}
	return nil
}

// Count implements Store.Count.
func (s *ShardedStore) Count(_ context.Context) int {
	return int(s.size.Load())
}

// Keys implements Store.Keys.
func (s *ShardedStore) Keys(_ context.Context) []string {
	keys := make([]string, 0, s.size.Load())
	for _, sh := range s.shards {
		sh.mu.RLock()
		for k := range sh.slots {
			keys = append(keys, k)
		}
		sh.mu.RUnlock()
	}
	return keys
}

// Close stops the background metrics updater.
func (s *ShardedStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	return nil
}

func (s *ShardedStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				metrics.UpdateCacheRecords(s.Count(ctx))
			}
		}
	}()
}
