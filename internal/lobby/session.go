package lobby

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Maximum message size allowed from peer
	maxMessageSize = 4096

	// Close code used for every server-initiated session close
	closeCodePolicy = 4000
)

// Session is one live waiting-room connection for one user. A user has
// at most one session; a newer connection supersedes the older one.
type Session struct {
	SessionID string
	UserID    string

	conn     *websocket.Conn
	outbound chan []byte
	logger   *slog.Logger

	sendTimeout time.Duration
	connectedAt time.Time

	mu       sync.Mutex
	lastSeen time.Time
	active   bool // any non-ping inbound frame observed
	dead     bool

	closeOnce sync.Once
	done      chan struct{}
}

func newSession(userID string, conn *websocket.Conn, queueSize int, sendTimeout time.Duration, now time.Time, logger *slog.Logger) *Session {
	s := &Session{
		SessionID:   uuid.New().String(),
		UserID:      userID,
		conn:        conn,
		outbound:    make(chan []byte, queueSize),
		sendTimeout: sendTimeout,
		connectedAt: now,
		lastSeen:    now,
		done:        make(chan struct{}),
	}
	s.logger = logger.With("user_id", userID, "session_id", s.SessionID)
	return s
}

// ConnectedAt is the handshake time of this session.
func (s *Session) ConnectedAt() time.Time {
	return s.connectedAt
}

// Touch records inbound traffic. Heartbeat pings keep the session from
// idling out but do not count as activity for the stale check.
func (s *Session) Touch(now time.Time, activity bool) {
	s.mu.Lock()
	s.lastSeen = now
	if activity {
		s.active = true
	}
	s.mu.Unlock()
}

// LastSeen returns the time of the most recent inbound frame.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// HasActivity reports whether the session ever sent a non-ping frame.
func (s *Session) HasActivity() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Enqueue places an encoded frame on the outbound queue without
// blocking. A full queue drops the frame and reports false.
func (s *Session) Enqueue(data []byte) bool {
	s.mu.Lock()
	if s.dead {
		s.mu.Unlock()
		return false
	}
	s.mu.Unlock()

	select {
	case s.outbound <- data:
		return true
	case <-s.done:
		return false
	default:
		s.logger.Warn("outbound queue full, dropping frame", "queue_size", cap(s.outbound))
		return false
	}
}

// Send encodes a frame and enqueues it.
func (s *Session) Send(frame any) bool {
	data, err := EncodeFrame(frame)
	if err != nil {
		s.logger.Error("frame encode failed", "error", err)
		return false
	}
	return s.Enqueue(data)
}

// Close terminates the session with a 4000 close frame carrying the
// reason, then tears down the connection. Safe to call more than once.
func (s *Session) Close(reason string) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.dead = true
		s.mu.Unlock()

		msg := websocket.FormatCloseMessage(closeCodePolicy, reason)
		s.conn.SetWriteDeadline(time.Now().Add(s.sendTimeout))
		s.conn.WriteMessage(websocket.CloseMessage, msg)
		s.conn.Close()
		close(s.done)
	})
}

// writePump is the single writer goroutine of the session. It drains
// the outbound queue and coalesces queued frames into one write.
func (s *Session) writePump() {
	defer s.conn.Close()

	for {
		select {
		case data := <-s.outbound:
			s.conn.SetWriteDeadline(time.Now().Add(s.sendTimeout))
			w, err := s.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				s.markDead()
				return
			}
			w.Write(data)

			// Add queued frames to the current WebSocket message
			n := len(s.outbound)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-s.outbound)
			}

			if err := w.Close(); err != nil {
				s.markDead()
				return
			}

		case <-s.done:
			return
		}
	}
}

func (s *Session) markDead() {
	s.mu.Lock()
	s.dead = true
	s.mu.Unlock()
	s.logger.Debug("session writer stopped")
}
