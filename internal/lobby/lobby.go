package lobby

import (
	"context"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kickin-server/internal/challenge"
	"github.com/kickin-server/internal/chat"
	"github.com/kickin-server/internal/clock"
	"github.com/kickin-server/internal/config"
	"github.com/kickin-server/internal/domain"
	"github.com/kickin-server/internal/redis"
	"github.com/kickin-server/internal/settlement"
)

// Store is the persistence surface the lobby needs.
type Store interface {
	GetUser(ctx context.Context, userID string) (*domain.User, error)
	GetUsersByIDs(ctx context.Context, ids []string) (map[string]*domain.User, error)
	TouchLastActive(ctx context.Context, userID string, at time.Time) error
}

// LeaderboardSource provides the ranked point projection.
type LeaderboardSource interface {
	TopN(ctx context.Context, n int) ([]redis.Entry, error)
}

// Lobby is the waiting room: it owns the session registry, presence,
// chat, the per-user rate limit and the periodic leaderboard
// broadcast, and routes challenge frames into the engine.
type Lobby struct {
	cfg    config.LobbyConfig
	zone   *clock.Zone
	logger *slog.Logger

	registry *Registry
	presence *Presence
	limiter  *RateLimiter
	filter   chat.Filter
	store    Store
	boards   LeaderboardSource

	engine *challenge.Engine
}

// NewLobby wires the realtime core. The challenge engine is attached
// afterwards with SetEngine because it needs the lobby as its event
// sink. boards may be nil when no leaderboard projection is
// configured.
func NewLobby(cfg config.LobbyConfig, zone *clock.Zone, store Store, boards LeaderboardSource, filter chat.Filter, logger *slog.Logger) *Lobby {
	registry := NewRegistry(cfg, zone, logger)
	l := &Lobby{
		cfg:      cfg,
		zone:     zone,
		logger:   logger,
		registry: registry,
		presence: NewPresence(registry, cfg.PresenceThrottle, logger),
		limiter:  NewRateLimiter(cfg.RateLimitMax, cfg.RateLimitWindow),
		filter:   filter,
		store:    store,
		boards:   boards,
	}
	registry.SetDetachHook(l.onDetach)
	return l
}

// SetEngine attaches the challenge engine. Must be called before the
// first connection is served.
func (l *Lobby) SetEngine(engine *challenge.Engine) {
	l.engine = engine
}

// Registry exposes the session registry, used as the engine's roster.
func (l *Lobby) Registry() *Registry {
	return l.registry
}

// Run starts the lobby's background loops and blocks until the context
// ends.
func (l *Lobby) Run(ctx context.Context) {
	go l.presence.Run(ctx)
	go l.limiter.Run(ctx)
	go l.leaderboardLoop(ctx)
	l.registry.Run(ctx)
}

// Stats is the operational snapshot served on the stats endpoint.
type Stats struct {
	Connected         int `json:"connected"`
	Visible           int `json:"visible"`
	PendingChallenges int `json:"pending_challenges"`
}

// CurrentStats reports live session counts.
func (l *Lobby) CurrentStats() Stats {
	return Stats{
		Connected:         l.registry.Count(),
		Visible:           len(l.presence.Snapshot()),
		PendingChallenges: l.engine.PendingCount(),
	}
}

// HandleConnection serves one authenticated connection: it installs
// the session, announces the user, sends the join snapshots, then
// reads frames until the connection dies. Blocks for the lifetime of
// the connection.
func (l *Lobby) HandleConnection(conn *websocket.Conn, user *domain.User) {
	now := l.zone.Now()
	s := newSession(user.ID, conn, l.cfg.OutboundQueue, l.cfg.SendTimeout, now, l.logger)
	l.registry.Attach(s)

	l.logger.Info("user connected", "user_id", user.ID, "session_id", s.SessionID)

	l.presence.Join(user, now, s.SessionID)
	s.Send(UserListFrame{Type: FrameTypeUserList, Users: l.presence.rebuild()})
	l.sendLeaderboard(s)

	ctx, cancel := context.WithTimeout(context.Background(), l.cfg.SendTimeout)
	if err := l.store.TouchLastActive(ctx, user.ID, now); err != nil {
		l.logger.Warn("last active update failed", "user_id", user.ID, "error", err)
	}
	cancel()

	l.readPump(s, user)
}

// readPump reads and routes frames for one session. Frames from one
// connection are processed strictly in arrival order.
func (l *Lobby) readPump(s *Session, user *domain.User) {
	defer func() {
		l.registry.Detach(s)
		l.logger.Info("user disconnected", "user_id", user.ID, "session_id", s.SessionID)
	}()

	s.conn.SetReadLimit(maxMessageSize)

	for {
		// The registry sweep closes idle sessions; the read deadline is
		// only a backstop against dead TCP peers.
		s.conn.SetReadDeadline(time.Now().Add(2 * l.cfg.IdleTimeout))

		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, closeCodePolicy) {
				l.logger.Debug("read failed", "user_id", user.ID, "error", err)
			}
			return
		}

		l.handleFrame(s, user, raw)
	}
}

// handleFrame decodes, rate-limits and routes one inbound frame. Only
// well-formed heartbeat pings skip the limiter: a frame with no
// parseable type cannot be a ping, so it still spends budget.
func (l *Lobby) handleFrame(s *Session, user *domain.User, raw []byte) {
	now := l.zone.Now()

	in, err := DecodeInbound(raw)
	if err != nil {
		s.Touch(now, true)
		if !l.limiter.Allow(user.ID, now) {
			s.Send(errorFrame("rate limited"))
			return
		}
		s.Send(errorFrame("invalid message format"))
		return
	}

	s.Touch(now, in.Type != FrameTypePing)

	if in.Type != FrameTypePing && !l.limiter.Allow(user.ID, now) {
		s.Send(errorFrame("rate limited"))
		return
	}

	l.route(s, user, in)
}

// onDetach runs once per removed session, after the registry dropped
// it.
func (l *Lobby) onDetach(s *Session) {
	l.presence.Leave(s.UserID, s.SessionID)
	if l.registry.IsConnected(s.UserID) {
		// A reconnect won the race against this teardown; the live
		// session keeps the user's limiter and challenge state.
		return
	}
	l.limiter.Forget(s.UserID)
	if l.engine != nil {
		l.engine.HandleDisconnect(s.UserID)
	}
}

// ChallengeExpired tells both parties the pending challenge is gone.
// Disconnected parties are skipped.
func (l *Lobby) ChallengeExpired(challengerID, targetID string) {
	l.registry.Send(challengerID, ChallengeExpiredFrame{Type: FrameTypeChallengeExpired, OtherID: targetID})
	l.registry.Send(targetID, ChallengeExpiredFrame{Type: FrameTypeChallengeExpired, OtherID: challengerID})
}

// MatchResolved delivers the result to both human participants and
// refreshes their presence projections.
func (l *Lobby) MatchResolved(rec *domain.MatchRecord, res *settlement.Result) {
	frame := MatchResultFrame{
		Type:            FrameTypeMatchResult,
		MatchID:         rec.MatchID,
		KickerID:        rec.KickerID,
		GoalkeeperID:    rec.GoalkeeperID,
		KickerSkill:     rec.KickerSkill,
		GoalkeeperSkill: rec.GoalkeeperSkill,
		WinnerID:        rec.WinnerID,
		WinnerRole:      string(rec.WinnerRole),
		LoserID:         rec.LoserID,
		LoserRole:       string(rec.LoserRole()),
		Timestamp:       clock.Stamp(rec.Timestamp.In(l.zone.Location())),
	}
	if res.WinnerLevel != nil {
		frame.WinnerLevelUp = &LevelUp{PrevLevel: res.WinnerLevel.PrevLevel, NewLevel: res.WinnerLevel.NewLevel}
	}
	if res.LoserLevel != nil {
		frame.LoserLevelUp = &LevelUp{PrevLevel: res.LoserLevel.PrevLevel, NewLevel: res.LoserLevel.NewLevel}
	}

	if rec.KickerID != domain.BotID {
		l.registry.Send(rec.KickerID, frame)
	}
	if rec.GoalkeeperID != domain.BotID {
		l.registry.Send(rec.GoalkeeperID, frame)
	}

	if res.Winner != nil {
		l.presence.Update(res.Winner)
	}
	if res.Loser != nil {
		l.presence.Update(res.Loser)
	}
}

// leaderboardLoop broadcasts the top players on a fixed period.
func (l *Lobby) leaderboardLoop(ctx context.Context) {
	if l.boards == nil {
		return
	}
	ticker := time.NewTicker(l.cfg.LeaderboardEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			frame, err := l.buildLeaderboard(ctx)
			if err != nil {
				l.logger.Warn("leaderboard build failed", "error", err)
				continue
			}
			l.registry.Broadcast(frame, "")
		}
	}
}

func (l *Lobby) sendLeaderboard(s *Session) {
	if l.boards == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), l.cfg.SendTimeout)
	defer cancel()

	frame, err := l.buildLeaderboard(ctx)
	if err != nil {
		l.logger.Warn("leaderboard build failed", "error", err)
		return
	}
	s.Send(frame)
}

// buildLeaderboard hydrates the ranked point entries into public user
// projections, preserving rank order. Entries without a user row are
// skipped.
func (l *Lobby) buildLeaderboard(ctx context.Context) (LeaderboardFrame, error) {
	frame := LeaderboardFrame{Type: FrameTypeLeaderboard, Data: []domain.PublicUser{}}

	entries, err := l.boards.TopN(ctx, l.cfg.LeaderboardSize)
	if err != nil {
		return frame, err
	}
	if len(entries) == 0 {
		return frame, nil
	}

	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.UserID
	}
	users, err := l.store.GetUsersByIDs(ctx, ids)
	if err != nil {
		return frame, err
	}

	for _, e := range entries {
		u, ok := users[e.UserID]
		if !ok {
			continue
		}
		frame.Data = append(frame.Data, u.Public(time.Time{}))
	}
	return frame, nil
}
