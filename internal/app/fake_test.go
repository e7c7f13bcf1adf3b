package service_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/okian/standings/internal/adapters/fetch"
)

const tableHeader = "teamId  teamName  submissionDate  score\n------  --------  --------------  -----\n"

// table renders rows as leaderboard text, one team per score.
func table(scores ...float64) string {
	var b strings.Builder
	b.WriteString(tableHeader)
	for i, s := range scores {
		fmt.Fprintf(&b, "%d  Team %c  2025-03-01 10:00:00  %g\n", i+1, 'A'+i, s)
	}
	return b.String()
}

// fakeFetcher serves canned text per competition and records calls.
type fakeFetcher struct {
	mu       sync.Mutex
	texts    map[string]string
	failures map[string]error
	gates    map[string]chan struct{}

	calls    atomic.Int64
	inFlight map[string]int
	maxPer   map[string]int
	started  chan string
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		texts:    make(map[string]string),
		failures: make(map[string]error),
		gates:    make(map[string]chan struct{}),
		inFlight: make(map[string]int),
		maxPer:   make(map[string]int),
		started:  make(chan string, 64),
	}
}

func (f *fakeFetcher) set(competition, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts[competition] = text
	delete(f.failures, competition)
}

func (f *fakeFetcher) fail(competition string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[competition] = err
}

// gate makes fetches for competition block until the returned func runs.
func (f *fakeFetcher) gate(competition string) func() {
	ch := make(chan struct{})
	f.mu.Lock()
	f.gates[competition] = ch
	f.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

func (f *fakeFetcher) maxConcurrent(competition string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxPer[competition]
}

func (f *fakeFetcher) Fetch(ctx context.Context, competition string, _ int) (string, error) {
	f.calls.Add(1)

	f.mu.Lock()
	f.inFlight[competition]++
	if f.inFlight[competition] > f.maxPer[competition] {
		f.maxPer[competition] = f.inFlight[competition]
	}
	gate := f.gates[competition]
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight[competition]--
		f.mu.Unlock()
	}()

	select {
	case f.started <- competition:
	default:
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failures[competition]; ok {
		return "", &fetch.FetchError{Competition: competition, Err: err}
	}
	text, ok := f.texts[competition]
	if !ok {
		return "", &fetch.FetchError{Competition: competition, Err: errors.New("404 - Not Found")}
	}
	return text, nil
}
