package api

import (
	"context"
	"errors"
	"net/http"

	service "github.com/okian/standings/internal/app"
	"github.com/okian/standings/internal/domain/model"
)

// UpdateDependencies defines the interface for triggering the pipeline.
type UpdateDependencies interface {
	Update(ctx context.Context, competition string) (model.Record, error)
}

type updateResponse struct {
	Message string `json:"message"`
}

// UpdateHandler handles update-trigger requests.
type UpdateHandler struct {
	deps UpdateDependencies
}

// NewUpdateHandler creates a new update handler.
func NewUpdateHandler(deps UpdateDependencies) *UpdateHandler {
	return &UpdateHandler{deps: deps}
}

// HandleUpdate handles POST /api/update_leaderboard/{competition}.
func (h *UpdateHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	const op = "api.update_leaderboard"

	if _, err := h.deps.Update(r.Context(), r.PathValue("competition")); err != nil {
		if errors.Is(err, service.ErrInvalidCompetition) {
			writeError(w, http.StatusBadRequest, WrapKind(op, ErrBadRequest, err))
			return
		}
		writeError(w, http.StatusInternalServerError, WrapKind(op, ErrUpstream, err))
		return
	}
	writeJSON(w, http.StatusOK, updateResponse{Message: "Leaderboard updated successfully."})
}
