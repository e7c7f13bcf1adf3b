// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/okian/standings/internal/domain/model"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Leaderboard returns the cached standings, populating them on a miss.
	Leaderboard(ctx context.Context, competition string) (model.Record, error)
	// Update runs the pipeline for a competition.
	Update(ctx context.Context, competition string) (model.Record, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	leaderboardHandler *LeaderboardHandler
	updateHandler      *UpdateHandler
	cors               *CORS
}

// Option configures a Server.
type Option func(*serverOptions)

type serverOptions struct {
	defaultLastUpdated time.Time
	allowedOrigins     string
}

// WithDefaultLastUpdated sets the timestamp reported for records that
// carry none.
func WithDefaultLastUpdated(t time.Time) Option {
	return func(o *serverOptions) { o.defaultLastUpdated = t }
}

// WithAllowedOrigins sets the CORS Access-Control-Allow-Origin value.
func WithAllowedOrigins(origins string) Option {
	return func(o *serverOptions) {
		if origins != "" {
			o.allowedOrigins = origins
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	o := serverOptions{
		defaultLastUpdated: time.Date(2025, time.March, 1, 0, 0, 0, 0, time.Local),
		allowedOrigins:     "*",
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		leaderboardHandler: NewLeaderboardHandler(deps, o.defaultLastUpdated),
		updateHandler:      NewUpdateHandler(deps),
		cors:               NewCORS(o.allowedOrigins),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("GET /api/leaderboard/{competition}",
		MetricsMiddleware(s.cors.Wrap(s.leaderboardHandler.HandleGetLeaderboard), "leaderboard"))
	mux.HandleFunc("POST /api/update_leaderboard/{competition}",
		MetricsMiddleware(s.cors.Wrap(s.updateHandler.HandleUpdate), "update_leaderboard"))
	mux.HandleFunc("OPTIONS /api/", s.cors.HandlePreflight)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = message(err)
	}
	writeJSON(w, status, errorResponse{Error: msg})
}
