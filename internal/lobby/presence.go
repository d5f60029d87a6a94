package lobby

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kickin-server/internal/domain"
)

// Presence maintains the roster of connected players and broadcasts
// user_list frames. Roster changes are coalesced: at most one
// broadcast goes out per throttle window no matter how many joins,
// leaves and stat updates land inside it.
type Presence struct {
	registry *Registry
	logger   *slog.Logger
	throttle time.Duration

	mu      sync.Mutex
	members map[string]*member

	snapshot atomic.Pointer[[]domain.PublicUser]
	notify   chan struct{}
}

type member struct {
	user        *domain.User
	connectedAt time.Time
	sessionID   string
}

// NewPresence creates the broadcaster. Run must be started for
// broadcasts to flow.
func NewPresence(registry *Registry, throttle time.Duration, logger *slog.Logger) *Presence {
	p := &Presence{
		registry: registry,
		logger:   logger,
		throttle: throttle,
		members:  make(map[string]*member),
		notify:   make(chan struct{}, 1),
	}
	empty := []domain.PublicUser{}
	p.snapshot.Store(&empty)
	return p
}

// Join adds a user to the roster and schedules a broadcast. The
// session id records which connection owns the entry.
func (p *Presence) Join(u *domain.User, connectedAt time.Time, sessionID string) {
	p.mu.Lock()
	p.members[u.ID] = &member{user: u, connectedAt: connectedAt, sessionID: sessionID}
	p.mu.Unlock()
	p.markDirty()
}

// Leave removes a user from the roster and schedules a broadcast. The
// entry is only removed when the leaving session still owns it, so a
// replaced session tearing down late cannot knock out its successor.
func (p *Presence) Leave(userID, sessionID string) {
	p.mu.Lock()
	m, ok := p.members[userID]
	owned := ok && m.sessionID == sessionID
	if owned {
		delete(p.members, userID)
	}
	p.mu.Unlock()
	if owned {
		p.markDirty()
	}
}

// Update replaces a member's user record after settlement changed its
// stats. Quota exhaustion drops the player from the projection on the
// next broadcast even though the connection stays open.
func (p *Presence) Update(u *domain.User) {
	p.mu.Lock()
	m, ok := p.members[u.ID]
	if ok {
		m.user = u
	}
	p.mu.Unlock()
	if ok {
		p.markDirty()
	}
}

// Snapshot returns the last published projection. The slice is shared
// and must not be mutated.
func (p *Presence) Snapshot() []domain.PublicUser {
	return *p.snapshot.Load()
}

func (p *Presence) markDirty() {
	select {
	case p.notify <- struct{}{}:
	default:
	}
}

// Run broadcasts coalesced roster changes until the context ends.
func (p *Presence) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.notify:
			p.publish()

			// Coalesce further changes inside the throttle window.
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.throttle):
			}
		}
	}
}

func (p *Presence) publish() {
	users := p.rebuild()
	p.snapshot.Store(&users)
	p.registry.Broadcast(UserListFrame{Type: FrameTypeUserList, Users: users}, "")
	p.logger.Debug("presence broadcast", "visible", len(users))
}

// rebuild projects the roster, hiding players without remaining quota.
func (p *Presence) rebuild() []domain.PublicUser {
	p.mu.Lock()
	users := make([]domain.PublicUser, 0, len(p.members))
	for _, m := range p.members {
		if m.user.RemainingMatches <= 0 {
			continue
		}
		users = append(users, m.user.Public(m.connectedAt))
	}
	p.mu.Unlock()

	sort.Slice(users, func(i, j int) bool {
		if !users[i].ConnectedAt.Equal(users[j].ConnectedAt) {
			return users[i].ConnectedAt.Before(users[j].ConnectedAt)
		}
		return users[i].ID < users[j].ID
	})
	return users
}
