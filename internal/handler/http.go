package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/kickin-server/internal/auth"
	"github.com/kickin-server/internal/domain"
	"github.com/kickin-server/internal/lobby"
	"github.com/kickin-server/internal/redis"
)

// authTimeout bounds the user lookup during the WebSocket handshake.
const authTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins; the token is the gate.
		return true
	},
}

// Store is the persistence surface of the HTTP layer.
type Store interface {
	GetUser(ctx context.Context, userID string) (*domain.User, error)
	GetUsersByIDs(ctx context.Context, ids []string) (map[string]*domain.User, error)
	TopByPoints(ctx context.Context, n int) ([]*domain.User, error)
}

// LeaderboardSource provides the ranked point projection.
type LeaderboardSource interface {
	TopN(ctx context.Context, n int) ([]redis.Entry, error)
	Count(ctx context.Context) (int64, error)
}

// Handler provides the HTTP surface: health probes, the waiting-room
// WebSocket endpoint and the small read-only API.
type Handler struct {
	lobby    *lobby.Lobby
	store    Store
	boards   LeaderboardSource
	verifier auth.TokenVerifier
	topSize  int
	logger   *slog.Logger
}

// NewHandler creates the HTTP handler. boards may be nil.
func NewHandler(l *lobby.Lobby, store Store, boards LeaderboardSource, verifier auth.TokenVerifier, topSize int, logger *slog.Logger) *Handler {
	return &Handler{
		lobby:    l,
		store:    store,
		boards:   boards,
		verifier: verifier,
		topSize:  topSize,
		logger:   logger,
	}
}

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Router creates and configures the HTTP router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	// Health check
	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.ReadyCheck)

	// WebSocket endpoint
	r.Get("/ws/waitingroom", h.HandleWaitingRoom)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/leaderboard", h.GetLeaderboard)
		r.Get("/ws/stats", h.GetWebSocketStats)
	})

	return r
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// HealthCheck handles liveness probe requests.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "healthy"})
}

// ReadyCheck handles readiness probe requests.
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "ready"})
}

// HandleWaitingRoom upgrades the connection and authenticates the
// user. Authentication failures close the socket with code 4000 and a
// reason; the upgrade itself always succeeds so the client can read
// the reason.
func (h *Handler) HandleWaitingRoom(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	if token == "" {
		h.reject(conn, "no token")
		return
	}

	identity, err := h.verifier.Verify(token)
	if err != nil {
		h.reject(conn, "invalid token")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), authTimeout)
	user, err := h.store.GetUser(ctx, identity.UserID)
	cancel()
	if err != nil {
		if domain.IsNotFoundError(err) {
			h.reject(conn, "user not found")
		} else {
			h.logger.Error("user lookup failed", "user_id", identity.UserID, "error", err)
			h.reject(conn, "internal error")
		}
		return
	}

	if !user.Active {
		h.reject(conn, "user inactive")
		return
	}

	h.lobby.HandleConnection(conn, user)
}

// bearerToken pulls the token from the query string or the
// Authorization header.
func bearerToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

func (h *Handler) reject(conn *websocket.Conn, reason string) {
	msg := websocket.FormatCloseMessage(4000, reason)
	conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	conn.Close()
}

// LeaderboardEntry is one row of the HTTP leaderboard response.
type LeaderboardEntry struct {
	Rank  int64              `json:"rank"`
	Point int64              `json:"point"`
	User  *domain.PublicUser `json:"user,omitempty"`
}

// GetLeaderboard serves the ranked point projection with hydrated user
// records. Without a projection it ranks straight off the users table.
func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := h.topSize
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			h.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	if h.boards == nil {
		top, err := h.store.TopByPoints(r.Context(), limit)
		if err != nil {
			h.logger.Error("leaderboard query failed", "error", err)
			h.writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		out := make([]LeaderboardEntry, 0, len(top))
		for i, u := range top {
			pub := u.Public(time.Time{})
			out = append(out, LeaderboardEntry{Rank: int64(i + 1), Point: u.TotalPoint, User: &pub})
		}
		h.writeSuccess(w, out)
		return
	}

	entries, err := h.boards.TopN(r.Context(), limit)
	if err != nil {
		h.logger.Error("leaderboard query failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.UserID
	}
	users := map[string]*domain.User{}
	if len(ids) > 0 {
		users, err = h.store.GetUsersByIDs(r.Context(), ids)
		if err != nil {
			h.logger.Error("leaderboard hydration failed", "error", err)
			h.writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
	}

	out := make([]LeaderboardEntry, 0, len(entries))
	for _, e := range entries {
		row := LeaderboardEntry{Rank: e.Rank, Point: e.Point}
		if u, ok := users[e.UserID]; ok {
			pub := u.Public(time.Time{})
			row.User = &pub
		}
		out = append(out, row)
	}
	h.writeSuccess(w, out)
}

// statsResponse extends the lobby counters with the size of the ranked
// projection.
type statsResponse struct {
	lobby.Stats
	RankedPlayers int64 `json:"ranked_players"`
}

// GetWebSocketStats serves live lobby counters.
func (h *Handler) GetWebSocketStats(w http.ResponseWriter, r *http.Request) {
	out := statsResponse{Stats: h.lobby.CurrentStats()}
	if h.boards != nil {
		n, err := h.boards.Count(r.Context())
		if err != nil {
			h.logger.Warn("ranked count failed", "error", err)
		} else {
			out.RankedPlayers = n
		}
	}
	h.writeSuccess(w, out)
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeSuccess writes a successful JSON response
func (h *Handler) writeSuccess(w http.ResponseWriter, data interface{}) {
	h.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

// writeError writes an error JSON response
func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, APIResponse{
		Success: false,
		Error:   msg,
	})
}
