// Package ranking turns parsed leaderboard rows into ranked standings.
package ranking

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/okian/standings/internal/domain/model"
)

// Order selects which end of the score range wins.
type Order int

const (
	// Descending ranks the highest score first.
	Descending Order = iota
	// Ascending ranks the lowest score first (loss-style metrics).
	Ascending
)

// ErrUnknownOrder is returned by ParseOrder for unrecognised names.
var ErrUnknownOrder = errors.New("unknown score order")

// ParseOrder maps "desc"/"asc" (case-insensitive) to an Order.
func ParseOrder(s string) (Order, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "desc", "descending":
		return Descending, nil
	case "asc", "ascending":
		return Ascending, nil
	default:
		return Descending, fmt.Errorf("%w: %q", ErrUnknownOrder, s)
	}
}

func (o Order) String() string {
	if o == Ascending {
		return "asc"
	}
	return "desc"
}

// Option configures a Ranker.
type Option func(*Ranker)

// WithOrder sets the score direction.
func WithOrder(o Order) Option {
	return func(r *Ranker) {
		if o == Ascending || o == Descending {
			r.order = o
		}
	}
}

// Ranker sorts, truncates and assigns competition ranks. It is stateless
// apart from its order and safe for concurrent use.
type Ranker struct {
	order Order
}

// New creates a Ranker; the default order is Descending.
func New(opts ...Option) *Ranker {
	r := &Ranker{order: Descending}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Order reports the configured direction.
func (r *Ranker) Order() Order { return r.order }

// Rank returns at most limit entries sorted by score with competition
// ranks: tied scores share a rank and the next distinct score takes its
// 1-based position, so [10,10,8] ranks as [1,1,3]. Sorting is stable, so
// ties keep their source order. The input slice is not modified.
func (r *Ranker) Rank(in []model.RawEntry, limit int) []model.Entry {
	if limit <= 0 || len(in) == 0 {
		return []model.Entry{}
	}

	sorted := slices.Clone(in)
	slices.SortStableFunc(sorted, r.compare)

	if len(sorted) > limit {
		sorted = sorted[:limit]
	}

	out := make([]model.Entry, len(sorted))
	for i, e := range sorted {
		rank := i + 1
		if i > 0 && e.Score == sorted[i-1].Score {
			rank = out[i-1].Rank
		}
		out[i] = model.Entry{
			Rank:           rank,
			Team:           e.Team,
			SubmissionDate: e.SubmissionDate,
			Score:          e.Score,
		}
	}
	return out
}

// Rerank re-applies ranking to already ranked entries.
func (r *Ranker) Rerank(in []model.Entry, limit int) []model.Entry {
	raw := make([]model.RawEntry, len(in))
	for i, e := range in {
		raw[i] = model.RawEntry{Team: e.Team, SubmissionDate: e.SubmissionDate, Score: e.Score}
	}
	return r.Rank(raw, limit)
}

func (r *Ranker) compare(a, b model.RawEntry) int {
	if r.order == Ascending {
		return cmpFloat(a.Score, b.Score)
	}
	return cmpFloat(b.Score, a.Score)
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
