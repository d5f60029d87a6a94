package lobby

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kickin-server/internal/clock"
	"github.com/kickin-server/internal/config"
)

// Close reasons used by the registry.
const (
	closeReasonSuperseded = "superseded"
	closeReasonIdle       = "idle"
	closeReasonStale      = "stale"
	closeReasonShutdown   = "server shutting down"
)

// Registry tracks the single live session per connected user and runs
// the heartbeat sweep that evicts idle and stale connections.
type Registry struct {
	cfg    config.LobbyConfig
	zone   *clock.Zone
	logger *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session

	// onDetach runs after a session leaves the registry, outside the
	// registry lock. Wired to presence and challenge cleanup.
	onDetach func(s *Session)
}

// NewRegistry creates an empty session registry.
func NewRegistry(cfg config.LobbyConfig, zone *clock.Zone, logger *slog.Logger) *Registry {
	return &Registry{
		cfg:      cfg,
		zone:     zone,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// SetDetachHook registers the callback invoked when a session is
// removed. Must be called before Run.
func (r *Registry) SetDetachHook(fn func(s *Session)) {
	r.onDetach = fn
}

// Attach registers a new session for the user and starts its writer.
// An existing session for the same user is closed with "superseded"
// before the new one is installed; its reader will observe the close
// and exit without detaching the successor.
func (r *Registry) Attach(s *Session) {
	r.mu.Lock()
	prev := r.sessions[s.UserID]
	r.sessions[s.UserID] = s
	r.mu.Unlock()

	if prev != nil {
		r.logger.Info("session superseded", "user_id", s.UserID, "old_session", prev.SessionID)
		prev.Close(closeReasonSuperseded)
	}

	go s.writePump()
}

// Detach removes the session if it is still the user's current one.
// A superseded session detaching late is a no-op, so the successor
// survives the old reader's teardown.
func (r *Registry) Detach(s *Session) {
	r.mu.Lock()
	current, ok := r.sessions[s.UserID]
	if !ok || current != s {
		r.mu.Unlock()
		return
	}
	delete(r.sessions, s.UserID)
	r.mu.Unlock()

	s.Close("")
	if r.onDetach != nil {
		r.onDetach(s)
	}
}

// Get returns the user's live session, if any.
func (r *Registry) Get(userID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[userID]
	return s, ok
}

// IsConnected reports whether the user has a live session.
func (r *Registry) IsConnected(userID string) bool {
	_, ok := r.Get(userID)
	return ok
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Send delivers one frame to one user. Returns false when the user is
// not connected or the frame was dropped on overflow.
func (r *Registry) Send(userID string, frame any) bool {
	s, ok := r.Get(userID)
	if !ok {
		return false
	}
	return s.Send(frame)
}

// Broadcast encodes the frame once and enqueues it to every session,
// optionally excluding one user.
func (r *Registry) Broadcast(frame any, excludeUserID string) {
	data, err := EncodeFrame(frame)
	if err != nil {
		r.logger.Error("broadcast encode failed", "error", err)
		return
	}

	r.mu.RLock()
	targets := make([]*Session, 0, len(r.sessions))
	for id, s := range r.sessions {
		if id == excludeUserID {
			continue
		}
		targets = append(targets, s)
	}
	r.mu.RUnlock()

	for _, s := range targets {
		s.Enqueue(data)
	}
}

// Run drives the heartbeat loop until the context is cancelled: an
// application ping every interval, plus eviction of sessions that went
// quiet or never did anything.
func (r *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.closeAll(closeReasonShutdown)
			return
		case <-ticker.C:
			r.sweep()
		}
	}
}

func (r *Registry) sweep() {
	now := r.zone.Now()
	ping := PingFrame{Type: FrameTypePing, Timestamp: clock.Stamp(now)}

	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	for _, s := range sessions {
		if now.Sub(s.LastSeen()) > r.cfg.IdleTimeout {
			r.logger.Info("closing idle session", "user_id", s.UserID, "last_seen", s.LastSeen())
			s.Close(closeReasonIdle)
			r.Detach(s)
			continue
		}
		if now.Sub(s.ConnectedAt()) > r.cfg.StaleTimeout && !s.HasActivity() {
			r.logger.Info("closing stale session", "user_id", s.UserID, "connected_at", s.ConnectedAt())
			s.Close(closeReasonStale)
			r.Detach(s)
			continue
		}
		s.Send(ping)
	}
}

func (r *Registry) closeAll(reason string) {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.Close(reason)
	}
}
