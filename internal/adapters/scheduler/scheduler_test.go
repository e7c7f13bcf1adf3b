package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okian/standings/internal/domain/model"
)

type recordingUpdater struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]bool
	gate  chan struct{}
}

func (u *recordingUpdater) Update(ctx context.Context, competition string) (model.Record, error) {
	if u.gate != nil {
		select {
		case <-u.gate:
		case <-ctx.Done():
			return model.Record{}, ctx.Err()
		}
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.calls = append(u.calls, competition)
	if u.fail[competition] {
		return model.Record{}, errors.New("boom")
	}
	return model.Record{Competition: competition}, nil
}

func (u *recordingUpdater) seen() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]string(nil), u.calls...)
}

func TestParse(t *testing.T) {
	for _, expr := range []string{"*/5 * * * *", "0 3 * * 1", "@hourly", "@every 90s"} {
		_, err := Parse(expr)
		assert.NoError(t, err, expr)
	}

	_, err := Parse("not a schedule")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidSchedule)
}

func TestParse_Next(t *testing.T) {
	s, err := New("*/15 * * * *", []string{"titanic"}, &recordingUpdater{})
	require.NoError(t, err)

	base := time.Date(2025, 3, 1, 10, 7, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 3, 1, 10, 15, 0, 0, time.UTC), s.Next(base))
}

func TestNew_RequiresCompetitions(t *testing.T) {
	_, err := New("@hourly", nil, &recordingUpdater{})
	assert.ErrorIs(t, err, ErrNoCompetitions)
}

func TestTick_UpdatesEveryCompetition(t *testing.T) {
	u := &recordingUpdater{fail: map[string]bool{"broken": true}}
	s, err := New("@hourly", []string{"titanic", "broken", "digits"}, u)
	require.NoError(t, err)

	failed := s.Tick(context.Background())

	assert.Equal(t, 1, failed)
	assert.Equal(t, []string{"titanic", "broken", "digits"}, u.seen())
}

func TestTick_SkipsWhenBusy(t *testing.T) {
	u := &recordingUpdater{gate: make(chan struct{})}
	s, err := New("@hourly", []string{"titanic"}, u)
	require.NoError(t, err)

	first := make(chan int, 1)
	go func() { first <- s.Tick(context.Background()) }()

	require.Eventually(t, s.busy.Load, time.Second, 5*time.Millisecond)
	assert.Equal(t, -1, s.Tick(context.Background()))

	close(u.gate)
	assert.Equal(t, 0, <-first)
	assert.Equal(t, []string{"titanic"}, u.seen())
}

func TestStart_FiresOnSchedule(t *testing.T) {
	u := &recordingUpdater{}
	s, err := New("@every 1s", []string{"titanic"}, u)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop()

	require.Eventually(t, func() bool { return len(u.seen()) >= 1 }, 3*time.Second, 20*time.Millisecond)
}

func TestStop_Idempotent(t *testing.T) {
	s, err := New("@hourly", []string{"titanic"}, &recordingUpdater{})
	require.NoError(t, err)

	s.Start(context.Background())
	s.Stop()
	s.Stop()
}
