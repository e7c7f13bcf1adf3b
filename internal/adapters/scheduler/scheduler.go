// Package scheduler refreshes a fixed list of competitions on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron"

	"github.com/okian/standings/internal/domain/model"
	"github.com/okian/standings/pkg/logger"
	"github.com/okian/standings/pkg/metrics"
)

// Run outcomes recorded on scheduled_runs_total.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomeSkipped = "skipped"
)

var (
	// ErrNoCompetitions is returned when there is nothing to refresh.
	ErrNoCompetitions = errors.New("scheduler: no competitions configured")
	// ErrInvalidSchedule wraps cron parse failures.
	ErrInvalidSchedule = errors.New("scheduler: invalid schedule")
)

// Updater runs the pipeline for one competition.
type Updater interface {
	Update(ctx context.Context, competition string) (model.Record, error)
}

// Scheduler triggers Update for every configured competition on each tick.
// A tick that fires while the previous one is still running is skipped.
type Scheduler struct {
	schedule     cron.Schedule
	expr         string
	competitions []string
	updater      Updater
	log          logger.Logger

	cron    *cron.Cron
	busy    atomic.Bool
	mu      sync.Mutex // orders wg.Add against Stop
	wg      sync.WaitGroup
	stopped chan struct{}
	once    sync.Once
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.log = l
		}
	}
}

// Parse accepts five-field cron expressions and descriptors such as
// "@hourly" or "@every 5m".
func Parse(expr string) (cron.Schedule, error) {
	parser := cron.NewParser(
		cron.Minute |
			cron.Hour |
			cron.Dom |
			cron.Month |
			cron.Dow |
			cron.Descriptor,
	)
	sched, err := parser.Parse(strings.TrimSpace(expr))
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidSchedule, expr, err)
	}
	return sched, nil
}

// New validates expr and builds a Scheduler. Nothing runs until Start.
func New(expr string, competitions []string, u Updater, opts ...Option) (*Scheduler, error) {
	if len(competitions) == 0 {
		return nil, ErrNoCompetitions
	}
	sched, err := Parse(expr)
	if err != nil {
		return nil, err
	}

	s := &Scheduler{
		schedule:     sched,
		expr:         expr,
		competitions: append([]string(nil), competitions...),
		updater:      u,
		log:          logger.Nop(),
		stopped:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Next reports when the schedule fires after t.
func (s *Scheduler) Next(t time.Time) time.Time { return s.schedule.Next(t) }

// Start begins firing ticks. Ticks use ctx, so cancelling it aborts any
// lock waits of an in-flight tick.
func (s *Scheduler) Start(ctx context.Context) {
	s.cron = cron.New()
	s.cron.Schedule(s.schedule, cron.FuncJob(func() {
		if !s.enter() {
			return
		}
		defer s.wg.Done()
		s.Tick(ctx)
	}))
	s.cron.Start()

	s.log.Info(ctx, "scheduler started",
		logger.String("schedule", s.expr),
		logger.Int("competitions", len(s.competitions)),
		logger.String("next", s.Next(time.Now()).Format(time.RFC3339)))

	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-s.stopped:
		}
	}()
}

// Tick refreshes every competition once, sequentially. It returns the
// number of failed updates, or -1 when skipped because a tick was running.
func (s *Scheduler) Tick(ctx context.Context) int {
	if !s.busy.CompareAndSwap(false, true) {
		metrics.RecordScheduledRun(OutcomeSkipped)
		s.log.Warn(ctx, "previous scheduled refresh still running; skipping tick")
		return -1
	}
	defer s.busy.Store(false)

	failed := 0
	for _, c := range s.competitions {
		if ctx.Err() != nil {
			break
		}
		start := time.Now()
		if _, err := s.updater.Update(ctx, c); err != nil {
			failed++
			metrics.RecordScheduledRun(OutcomeError)
			s.log.Error(ctx, "scheduled refresh failed",
				logger.String("competition", c), logger.Error(err))
			continue
		}
		metrics.RecordScheduledRun(OutcomeSuccess)
		s.log.Debug(ctx, "scheduled refresh done",
			logger.String("competition", c),
			logger.Duration("took", time.Since(start)))
	}
	return failed
}

// enter registers a tick unless the scheduler is stopping.
func (s *Scheduler) enter() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.stopped:
		return false
	default:
		s.wg.Add(1)
		return true
	}
}

// Stop halts the cron loop and waits for a running tick to return.
func (s *Scheduler) Stop() {
	s.once.Do(func() {
		s.mu.Lock()
		close(s.stopped)
		s.mu.Unlock()
		if s.cron != nil {
			s.cron.Stop()
		}
		s.wg.Wait()
	})
}
