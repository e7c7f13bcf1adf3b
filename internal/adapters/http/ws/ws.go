// Package ws pushes leaderboard update events to WebSocket clients.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/standings/internal/adapters/mq/broadcast"
	"github.com/okian/standings/internal/config"
	"github.com/okian/standings/internal/domain/model"
	"github.com/okian/standings/pkg/logger"
)

const (
	// EventUpdateLeaderboard names the only event type sent to clients.
	EventUpdateLeaderboard = "update_leaderboard"

	// writeTimeout is the deadline for a single write to a client.
	writeTimeout = 10 * time.Second

	// pongWait is how long to wait for a pong before treating the
	// connection as dead.
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	readLimit = 512
)

// Message is the JSON envelope sent for every update.
type Message struct {
	Event string  `json:"event"`
	Data  Payload `json:"data"`
}

// Payload carries one committed leaderboard.
type Payload struct {
	ID              string        `json:"id"`
	CompetitionName string        `json:"competition_name"`
	Leaderboard     []model.Entry `json:"leaderboard"`
	LastUpdated     string        `json:"last_updated"`
}

// NewMessage builds the wire message for an event.
func NewMessage(e model.Event) Message { //nolint:gocritic // hugeParam: converted once per event
	entries := e.Entries
	if entries == nil {
		entries = []model.Entry{}
	}
	return Message{
		Event: EventUpdateLeaderboard,
		Data: Payload{
			ID:              e.ID.String(),
			CompetitionName: e.Competition,
			Leaderboard:     entries,
			LastUpdated:     e.LastUpdated.Format(config.LastUpdatedLayout),
		},
	}
}

// Subscriber is the source of update events.
type Subscriber interface {
	Subscribe(ctx context.Context) (broadcast.Subscription, error)
}

// Handler upgrades requests and streams events to each client.
type Handler struct {
	subs     Subscriber
	upgrader websocket.Upgrader
	clients  atomic.Int64
	log      logger.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.log = l
		}
	}
}

// WithCheckOrigin overrides the upgrader's origin check.
func WithCheckOrigin(fn func(r *http.Request) bool) Option {
	return func(h *Handler) {
		if fn != nil {
			h.upgrader.CheckOrigin = fn
		}
	}
}

// AllowOrigins returns an origin check for a comma-separated list of
// origins. "*" or an empty list accepts any origin. Requests without an
// Origin header come from non-browser clients and are accepted.
func AllowOrigins(origins string) func(r *http.Request) bool {
	allowed := make(map[string]bool)
	for _, o := range strings.Split(origins, ",") {
		o = strings.ToLower(strings.TrimSpace(o))
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		if o != "" {
			allowed[o] = true
		}
	}
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowed[strings.ToLower(origin)]
	}
}

// New creates a Handler. All origins are accepted unless WithCheckOrigin
// says otherwise.
func New(subs Subscriber, opts ...Option) *Handler {
	h := &Handler{
		subs: subs,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log: logger.Nop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the handler at /ws.
func (h *Handler) Register(_ context.Context, mux *http.ServeMux) {
	mux.Handle("GET /ws", h)
}

// Count returns the number of connected clients.
func (h *Handler) Count() int { return int(h.clients.Load()) }

// ServeHTTP upgrades the connection and blocks until it closes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already written the error response.
		return
	}
	defer conn.Close()

	// The request context does not end when a hijacked connection drops,
	// so the read pump cancels this one instead.
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	sub, err := h.subs.Subscribe(ctx)
	if err != nil {
		h.log.Warn(ctx, "websocket subscribe failed", logger.Error(err))
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "shutting down"),
			time.Now().Add(writeTimeout))
		return
	}

	h.clients.Add(1)
	defer h.clients.Add(-1)
	h.log.Debug(ctx, "websocket client connected",
		logger.String("subscriber", sub.ID.String()),
		logger.String("remote", r.RemoteAddr))

	go func() {
		readPump(conn)
		cancel()
	}()
	h.writePump(ctx, conn, sub)
}

// writePump forwards events and pings until the subscription or the
// connection ends.
func (h *Handler) writePump(ctx context.Context, conn *websocket.Conn, sub broadcast.Subscription) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case e, ok := <-sub.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			data, err := json.Marshal(NewMessage(e))
			if err != nil {
				h.log.Error(ctx, "encode websocket message", logger.Error(err))
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump handles control frames and returns when the peer goes away.
func readPump(conn *websocket.Conn) {
	conn.SetReadLimit(readLimit)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
