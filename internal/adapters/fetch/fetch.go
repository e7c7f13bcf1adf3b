// Package fetch obtains raw leaderboard text from the external source.
package fetch

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/okian/standings/pkg/metrics"
)

// Placeholders substituted into command arguments and URLs.
const (
	PlaceholderCompetition = "{competition}"
	PlaceholderLimit       = "{limit}"
)

// maxStderr bounds how much stderr is carried on a FetchError.
const maxStderr = 2048

// Fetcher returns the raw tabular text for a competition.
type Fetcher interface {
	Fetch(ctx context.Context, competition string, rowLimit int) (string, error)
}

// Func adapts a plain function to Fetcher.
type Func func(ctx context.Context, competition string, rowLimit int) (string, error)

// Fetch implements Fetcher.
func (f Func) Fetch(ctx context.Context, competition string, rowLimit int) (string, error) {
	return f(ctx, competition, rowLimit)
}

func expand(s, competition string, rowLimit int) string {
	return strings.NewReplacer(
		PlaceholderCompetition, competition,
		PlaceholderLimit, strconv.Itoa(rowLimit),
	).Replace(s)
}

// WithTimeout bounds every call to next by d and records fetch metrics.
// Errors that are not already a *FetchError are wrapped in one.
func WithTimeout(next Fetcher, d time.Duration) Fetcher {
	return Func(func(ctx context.Context, competition string, rowLimit int) (string, error) {
		if d > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d)
			defer cancel()
		}

		start := time.Now()
		text, err := next.Fetch(ctx, competition, rowLimit)
		metrics.RecordFetchLatency(float64(time.Since(start).Milliseconds()))
		if err != nil {
			if _, ok := err.(*FetchError); !ok { //nolint:errorlint // only wrap bare errors
				err = &FetchError{Competition: competition, Err: err}
			}
			metrics.RecordFetchError(reason(err))
			return "", err
		}
		return text, nil
	})
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxStderr {
		s = s[len(s)-maxStderr:]
	}
	return s
}
