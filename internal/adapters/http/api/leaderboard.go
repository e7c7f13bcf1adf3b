package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	service "github.com/okian/standings/internal/app"
	"github.com/okian/standings/internal/config"
	"github.com/okian/standings/internal/domain/model"
)

// LeaderboardDependencies defines the interface for leaderboard reads.
type LeaderboardDependencies interface {
	Leaderboard(ctx context.Context, competition string) (model.Record, error)
}

// leaderboardResponse is the body of GET /api/leaderboard/{competition}.
type leaderboardResponse struct {
	Leaderboard []model.Entry `json:"leaderboard"`
	LastUpdated string        `json:"last_updated"`
}

// LeaderboardHandler handles leaderboard requests.
type LeaderboardHandler struct {
	deps               LeaderboardDependencies
	defaultLastUpdated time.Time
}

// NewLeaderboardHandler creates a new leaderboard handler.
func NewLeaderboardHandler(deps LeaderboardDependencies, defaultLastUpdated time.Time) *LeaderboardHandler {
	return &LeaderboardHandler{deps: deps, defaultLastUpdated: defaultLastUpdated}
}

// HandleGetLeaderboard handles GET /api/leaderboard/{competition}.
func (h *LeaderboardHandler) HandleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_leaderboard"

	rec, err := h.deps.Leaderboard(r.Context(), r.PathValue("competition"))
	if err != nil {
		if errors.Is(err, service.ErrInvalidCompetition) {
			writeError(w, http.StatusBadRequest, WrapKind(op, ErrBadRequest, err))
			return
		}
		writeError(w, http.StatusInternalServerError, WrapKind(op, ErrUpstream, err))
		return
	}

	ts := rec.LastUpdated
	if ts.IsZero() {
		ts = h.defaultLastUpdated
	}
	entries := rec.Entries
	if entries == nil {
		entries = []model.Entry{}
	}
	writeJSON(w, http.StatusOK, leaderboardResponse{
		Leaderboard: entries,
		LastUpdated: ts.Format(config.LastUpdatedLayout),
	})
}
