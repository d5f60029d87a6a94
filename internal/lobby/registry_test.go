package lobby

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kickin-server/internal/clock"
	"github.com/kickin-server/internal/config"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	zone, err := clock.NewZone("UTC")
	if err != nil {
		t.Fatalf("zone: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRegistry(config.LobbyConfig{}, zone, logger)
}

func TestAttachSupersedesExistingSession(t *testing.T) {
	r := testRegistry(t)
	var detached []*Session
	r.SetDetachHook(func(s *Session) { detached = append(detached, s) })

	server1, client1 := wsPipe(t)
	s1 := newSession("u1", server1, 16, time.Second, time.Unix(1700000000, 0), r.logger)
	r.Attach(s1)

	server2, _ := wsPipe(t)
	s2 := newSession("u1", server2, 16, time.Second, time.Unix(1700000001, 0), r.logger)
	r.Attach(s2)

	if r.Count() != 1 {
		t.Fatalf("count = %d, want 1", r.Count())
	}
	if got, _ := r.Get("u1"); got != s2 {
		t.Fatal("registry should hold the newer session")
	}

	// The replaced client observes the policy close with the reason.
	client1.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err := client1.ReadMessage()
	var closeErr *websocket.CloseError
	if !errors.As(err, &closeErr) {
		t.Fatalf("read = %v, want close error", err)
	}
	if closeErr.Code != closeCodePolicy || closeErr.Text != closeReasonSuperseded {
		t.Fatalf("close = %d %q, want %d %q", closeErr.Code, closeErr.Text, closeCodePolicy, closeReasonSuperseded)
	}

	// The replaced reader's late detach must not evict the successor
	// and must not fire the cleanup hook.
	r.Detach(s1)
	if got, ok := r.Get("u1"); !ok || got != s2 {
		t.Fatal("late detach of the replaced session evicted the successor")
	}
	if len(detached) != 0 {
		t.Fatalf("detach hook fired %d times for the replaced session", len(detached))
	}

	r.Detach(s2)
	if r.Count() != 0 {
		t.Fatalf("count after detach = %d, want 0", r.Count())
	}
	if len(detached) != 1 || detached[0] != s2 {
		t.Fatalf("detach hook calls = %v, want exactly s2", detached)
	}

	// Detach is idempotent.
	r.Detach(s2)
	if len(detached) != 1 {
		t.Fatalf("detach hook fired again on repeat detach")
	}
}

func TestBroadcastDropsOnlySaturatedSession(t *testing.T) {
	r := testRegistry(t)

	// Sessions inserted directly so no write pump drains the queues.
	slow := newSession("slow", nil, 1, time.Second, time.Unix(1700000000, 0), r.logger)
	fast := newSession("fast", nil, 4, time.Second, time.Unix(1700000000, 0), r.logger)
	r.sessions["slow"] = slow
	r.sessions["fast"] = fast

	r.Broadcast(PingFrame{Type: FrameTypePing}, "")
	r.Broadcast(PingFrame{Type: FrameTypePing}, "")

	if len(slow.outbound) != 1 {
		t.Fatalf("slow queue = %d frames, want 1 (overflow dropped)", len(slow.outbound))
	}
	if len(fast.outbound) != 2 {
		t.Fatalf("fast queue = %d frames, want 2", len(fast.outbound))
	}
}
