package lobby

import (
	"context"
	"sync"
	"time"
)

// RateLimiter enforces a per-user inbound frame budget over a sliding
// window. Entries are created lazily on first use and reaped once the
// user has been quiet for a full window.
type RateLimiter struct {
	max    int
	window time.Duration

	entries sync.Map // userID -> *limitEntry
}

type limitEntry struct {
	mu          sync.Mutex
	windowStart time.Time
	count       int
	lastSeen    time.Time
}

// NewRateLimiter builds a limiter allowing max frames per window.
func NewRateLimiter(max int, window time.Duration) *RateLimiter {
	return &RateLimiter{max: max, window: window}
}

// Allow records one frame for the user and reports whether it fits in
// the current window.
func (l *RateLimiter) Allow(userID string, now time.Time) bool {
	v, _ := l.entries.LoadOrStore(userID, &limitEntry{windowStart: now})
	e := v.(*limitEntry)

	e.mu.Lock()
	defer e.mu.Unlock()

	if now.Sub(e.windowStart) >= l.window {
		e.windowStart = now
		e.count = 0
	}
	e.lastSeen = now
	e.count++
	return e.count <= l.max
}

// Forget drops the user's limiter state, typically on disconnect.
func (l *RateLimiter) Forget(userID string) {
	l.entries.Delete(userID)
}

// Run reaps entries whose users have been quiet for a full window.
func (l *RateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(l.window)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			l.reap(now)
		}
	}
}

func (l *RateLimiter) reap(now time.Time) {
	l.entries.Range(func(key, v any) bool {
		e := v.(*limitEntry)
		e.mu.Lock()
		stale := now.Sub(e.lastSeen) >= l.window
		e.mu.Unlock()
		if stale {
			l.entries.Delete(key)
		}
		return true
	})
}
