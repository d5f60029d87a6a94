package lobby

import (
	"io"
	"log/slog"
	"testing"
	"time"
)

func testSession(queueSize int) *Session {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return newSession("u1", nil, queueSize, time.Second, time.Unix(1700000000, 0), logger)
}

func TestEnqueueDropsOnFullQueue(t *testing.T) {
	s := testSession(1)

	if !s.Enqueue([]byte(`{"type":"ping"}`)) {
		t.Fatal("first enqueue should fit")
	}
	if s.Enqueue([]byte(`{"type":"pong"}`)) {
		t.Fatal("enqueue on a full queue should drop and report false")
	}
	if len(s.outbound) != 1 {
		t.Fatalf("queue holds %d frames, want 1", len(s.outbound))
	}
}

func TestEnqueueRefusesDeadSession(t *testing.T) {
	s := testSession(4)
	s.markDead()

	if s.Enqueue([]byte(`{"type":"ping"}`)) {
		t.Fatal("dead session accepted a frame")
	}
	if len(s.outbound) != 0 {
		t.Fatalf("queue holds %d frames, want 0", len(s.outbound))
	}
}

func TestTouchTracksActivity(t *testing.T) {
	s := testSession(1)
	base := time.Unix(1700000000, 0)

	// Heartbeats refresh lastSeen without counting as activity.
	s.Touch(base.Add(time.Minute), false)
	if s.HasActivity() {
		t.Fatal("ping counted as activity")
	}
	if !s.LastSeen().Equal(base.Add(time.Minute)) {
		t.Fatalf("lastSeen = %v, want %v", s.LastSeen(), base.Add(time.Minute))
	}

	s.Touch(base.Add(2*time.Minute), true)
	if !s.HasActivity() {
		t.Fatal("non-ping frame did not count as activity")
	}
}
