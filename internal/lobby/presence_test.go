package lobby

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/kickin-server/internal/clock"
	"github.com/kickin-server/internal/config"
	"github.com/kickin-server/internal/domain"
)

func testPresence(t *testing.T) *Presence {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	zone, err := clock.NewZone("UTC")
	if err != nil {
		t.Fatalf("zone: %v", err)
	}
	registry := NewRegistry(config.LobbyConfig{}, zone, logger)
	return NewPresence(registry, 250*time.Millisecond, logger)
}

func TestPresenceHidesExhaustedQuota(t *testing.T) {
	p := testPresence(t)
	at := time.Unix(1700000000, 0)

	p.Join(&domain.User{ID: "a", RemainingMatches: 3}, at, "s-a")
	p.Join(&domain.User{ID: "b", RemainingMatches: 0}, at, "s-b")

	users := p.rebuild()
	if len(users) != 1 || users[0].ID != "a" {
		t.Fatalf("visible = %+v, want only a", users)
	}
}

func TestPresenceUpdateAndLeave(t *testing.T) {
	p := testPresence(t)
	at := time.Unix(1700000000, 0)

	p.Join(&domain.User{ID: "a", RemainingMatches: 1, TotalPoint: 5}, at, "s-a")
	p.Join(&domain.User{ID: "b", RemainingMatches: 2}, at.Add(time.Second), "s-b")

	// Settlement spent a's last match; the projection drops them.
	p.Update(&domain.User{ID: "a", RemainingMatches: 0, TotalPoint: 6})

	users := p.rebuild()
	if len(users) != 1 || users[0].ID != "b" {
		t.Fatalf("visible = %+v, want only b", users)
	}

	p.Leave("b", "s-b")
	if users := p.rebuild(); len(users) != 0 {
		t.Fatalf("visible after leave = %+v, want empty", users)
	}

	// Updating an absent member is a no-op.
	p.Update(&domain.User{ID: "ghost", RemainingMatches: 5})
	if users := p.rebuild(); len(users) != 0 {
		t.Fatalf("ghost appeared: %+v", users)
	}
}

func TestPresenceLeaveIgnoresReplacedSession(t *testing.T) {
	p := testPresence(t)
	at := time.Unix(1700000000, 0)

	p.Join(&domain.User{ID: "a", RemainingMatches: 1}, at, "s-old")
	p.Join(&domain.User{ID: "a", RemainingMatches: 1}, at.Add(time.Second), "s-new")

	// The replaced session tears down after the reconnect finished;
	// the successor's entry must survive.
	p.Leave("a", "s-old")
	if users := p.rebuild(); len(users) != 1 || users[0].ID != "a" {
		t.Fatalf("visible = %+v, want a", users)
	}

	p.Leave("a", "s-new")
	if users := p.rebuild(); len(users) != 0 {
		t.Fatalf("visible = %+v, want empty", users)
	}
}

func TestPresenceOrderedByConnect(t *testing.T) {
	p := testPresence(t)
	base := time.Unix(1700000000, 0)

	p.Join(&domain.User{ID: "late", RemainingMatches: 1}, base.Add(time.Minute), "s-late")
	p.Join(&domain.User{ID: "early", RemainingMatches: 1}, base, "s-early")

	users := p.rebuild()
	if len(users) != 2 || users[0].ID != "early" || users[1].ID != "late" {
		t.Fatalf("order = %+v, want early then late", users)
	}
}

func TestPresencePublishUpdatesSnapshot(t *testing.T) {
	p := testPresence(t)
	at := time.Unix(1700000000, 0)

	if got := len(p.Snapshot()); got != 0 {
		t.Fatalf("initial snapshot = %d entries, want 0", got)
	}

	p.Join(&domain.User{ID: "a", RemainingMatches: 1}, at, "s-a")
	p.publish()

	snap := p.Snapshot()
	if len(snap) != 1 || snap[0].ID != "a" {
		t.Fatalf("snapshot = %+v, want a", snap)
	}
}
