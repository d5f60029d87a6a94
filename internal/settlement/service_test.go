package settlement

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/kickin-server/internal/domain"
)

var errTransient = errors.New("transient store failure")

type fakeStore struct {
	users map[string]*domain.User

	matches        map[string]bool
	insertFailures int
	applyFailures  map[string]int
	levelCalls     int
}

func newFakeStore(users ...*domain.User) *fakeStore {
	s := &fakeStore{
		users:         make(map[string]*domain.User),
		matches:       make(map[string]bool),
		applyFailures: make(map[string]int),
	}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *fakeStore) InsertMatch(ctx context.Context, m *domain.MatchRecord) error {
	if s.insertFailures > 0 {
		s.insertFailures--
		return errTransient
	}
	if s.matches[m.MatchID] {
		return domain.ErrDuplicateMatch
	}
	s.matches[m.MatchID] = true
	return nil
}

func (s *fakeStore) ApplyMatchOutcome(ctx context.Context, userID string, role domain.MatchRole, won bool, at time.Time) (*domain.User, error) {
	if n := s.applyFailures[userID]; n > 0 {
		s.applyFailures[userID] = n - 1
		return nil, errTransient
	}

	u, ok := s.users[userID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	if u.RemainingMatches <= 0 {
		return nil, domain.ErrNoQuota
	}

	if role == domain.MatchRoleKicker {
		u.TotalKicked++
		if won {
			u.KickedWin++
		}
	} else {
		u.TotalKeep++
		if won {
			u.KeepWin++
		}
	}
	if won {
		u.TotalPoint++
		u.AvailableSkillPoints++
	}
	u.RemainingMatches--
	return u, nil
}

func (s *fakeStore) SetUserLevel(ctx context.Context, userID string, level, legend int, isPro bool) error {
	s.levelCalls++
	u, ok := s.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.Level = level
	u.LegendLevel = legend
	u.IsPro = isPro
	return nil
}

type fakeDispatcher struct {
	events []domain.RewardEvent
}

func (d *fakeDispatcher) Dispatch(event domain.RewardEvent) { d.events = append(d.events, event) }
func (d *fakeDispatcher) Close() error                      { return nil }

type fakePoints struct {
	points  map[string]int64
	removed []string
	err     error
}

func (p *fakePoints) SetPoint(ctx context.Context, userID string, point int64) error {
	if p.err != nil {
		return p.err
	}
	if p.points == nil {
		p.points = make(map[string]int64)
	}
	p.points[userID] = point
	return nil
}

func (p *fakePoints) Remove(ctx context.Context, userID string) error {
	if p.err != nil {
		return p.err
	}
	p.removed = append(p.removed, userID)
	delete(p.points, userID)
	return nil
}

func settled(id string, winner, loser string) *domain.MatchRecord {
	return &domain.MatchRecord{
		MatchID:         id,
		Timestamp:       time.Unix(1700000000, 0),
		KickerID:        winner,
		GoalkeeperID:    loser,
		KickerSkill:     "POWER",
		GoalkeeperSkill: "LOW_DIVE",
		WinnerID:        winner,
		LoserID:         loser,
		WinnerRole:      domain.MatchRoleKicker,
	}
}

func testService(store *fakeStore, points *fakePoints, rewards *fakeDispatcher) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	var sink PointsSink
	if points != nil {
		sink = points
	}
	svc := NewService(store, sink, rewards, func(err error) bool {
		return errors.Is(err, errTransient)
	}, 0, logger)
	svc.retryDelay = 0
	return svc
}

func TestSettleAppliesCounters(t *testing.T) {
	winner := &domain.User{ID: "w", Level: 1, RemainingMatches: 3, TotalPoint: 10}
	loser := &domain.User{ID: "l", Level: 1, RemainingMatches: 2, TotalPoint: 5}
	store := newFakeStore(winner, loser)
	points := &fakePoints{}
	rewards := &fakeDispatcher{}

	res, err := testService(store, points, rewards).Settle(context.Background(), settled("m1", "w", "l"))
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if res.AlreadySettled {
		t.Fatalf("unexpected AlreadySettled")
	}

	if winner.TotalKicked != 1 || winner.KickedWin != 1 {
		t.Fatalf("winner kicked/win = %d/%d, want 1/1", winner.TotalKicked, winner.KickedWin)
	}
	if winner.TotalPoint != 11 || winner.AvailableSkillPoints != 1 || winner.RemainingMatches != 2 {
		t.Fatalf("winner point/skill/quota = %d/%d/%d", winner.TotalPoint, winner.AvailableSkillPoints, winner.RemainingMatches)
	}
	if loser.TotalKeep != 1 || loser.KeepWin != 0 {
		t.Fatalf("loser keep/win = %d/%d, want 1/0", loser.TotalKeep, loser.KeepWin)
	}
	if loser.TotalPoint != 5 || loser.RemainingMatches != 1 {
		t.Fatalf("loser point/quota = %d/%d, want 5/1", loser.TotalPoint, loser.RemainingMatches)
	}

	if points.points["w"] != 11 || points.points["l"] != 5 {
		t.Fatalf("leaderboard points = %v", points.points)
	}
	if len(rewards.events) != 0 {
		t.Fatalf("reward events = %d, want 0", len(rewards.events))
	}
}

func TestSettleIdempotent(t *testing.T) {
	winner := &domain.User{ID: "w", Level: 1, RemainingMatches: 3}
	loser := &domain.User{ID: "l", Level: 1, RemainingMatches: 3}
	store := newFakeStore(winner, loser)
	svc := testService(store, nil, &fakeDispatcher{})

	rec := settled("m1", "w", "l")
	if _, err := svc.Settle(context.Background(), rec); err != nil {
		t.Fatalf("first settle: %v", err)
	}

	res, err := svc.Settle(context.Background(), rec)
	if err != nil {
		t.Fatalf("second settle: %v", err)
	}
	if !res.AlreadySettled {
		t.Fatalf("expected AlreadySettled on duplicate")
	}
	if winner.TotalKicked != 1 || loser.TotalKeep != 1 {
		t.Fatalf("counters double applied: kicked=%d keep=%d", winner.TotalKicked, loser.TotalKeep)
	}
}

func TestSettleRewardMilestone(t *testing.T) {
	// Ninth win so far; this match makes it ten.
	winner := &domain.User{ID: "w", Level: 1, RemainingMatches: 3, KickedWin: 7, KeepWin: 2}
	loser := &domain.User{ID: "l", Level: 1, RemainingMatches: 3}
	store := newFakeStore(winner, loser)
	rewards := &fakeDispatcher{}

	if _, err := testService(store, nil, rewards).Settle(context.Background(), settled("m1", "w", "l")); err != nil {
		t.Fatalf("settle: %v", err)
	}

	if len(rewards.events) != 1 {
		t.Fatalf("reward events = %d, want 1", len(rewards.events))
	}
	ev := rewards.events[0]
	if ev.UserID != "w" || ev.Milestone != 10 || ev.MatchID != "m1" {
		t.Fatalf("reward event = %+v", ev)
	}
}

func TestSettleLevelUp(t *testing.T) {
	// 99 points; the winning point crosses the 100 threshold to level 2.
	winner := &domain.User{ID: "w", Level: 1, RemainingMatches: 3, TotalPoint: 99}
	loser := &domain.User{ID: "l", Level: 1, RemainingMatches: 3}
	store := newFakeStore(winner, loser)

	res, err := testService(store, nil, &fakeDispatcher{}).Settle(context.Background(), settled("m1", "w", "l"))
	if err != nil {
		t.Fatalf("settle: %v", err)
	}

	if res.WinnerLevel == nil {
		t.Fatalf("expected winner level event")
	}
	if res.WinnerLevel.PrevLevel != 1 || res.WinnerLevel.NewLevel != 2 {
		t.Fatalf("level event = %+v, want 1 -> 2", res.WinnerLevel)
	}
	if winner.Level != 2 {
		t.Fatalf("winner level = %d, want 2", winner.Level)
	}
	if res.LoserLevel != nil {
		t.Fatalf("unexpected loser level event")
	}
}

func TestSettleBotMatch(t *testing.T) {
	human := &domain.User{ID: "h", Level: 1, RemainingMatches: 3}
	store := newFakeStore(human)

	rec := settled("m1", domain.BotID, "h")
	res, err := testService(store, nil, &fakeDispatcher{}).Settle(context.Background(), rec)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}

	if res.Winner != nil {
		t.Fatalf("bot winner should not be settled")
	}
	if res.Loser == nil || res.Loser.ID != "h" {
		t.Fatalf("human loser not settled: %+v", res.Loser)
	}
	if human.TotalKeep != 1 || human.RemainingMatches != 2 {
		t.Fatalf("human keep/quota = %d/%d, want 1/2", human.TotalKeep, human.RemainingMatches)
	}
}

func TestSettleTransientRetry(t *testing.T) {
	winner := &domain.User{ID: "w", Level: 1, RemainingMatches: 3}
	loser := &domain.User{ID: "l", Level: 1, RemainingMatches: 3}
	store := newFakeStore(winner, loser)
	store.insertFailures = 1

	res, err := testService(store, nil, &fakeDispatcher{}).Settle(context.Background(), settled("m1", "w", "l"))
	if err != nil {
		t.Fatalf("settle after transient failure: %v", err)
	}
	if res.Winner == nil || res.Loser == nil {
		t.Fatalf("settlement incomplete after retry")
	}
}

func TestSettleDropsVanishedUserFromProjection(t *testing.T) {
	// The loser's row is gone; settlement drops their stale
	// leaderboard entry instead of leaving it ranked forever.
	winner := &domain.User{ID: "w", Level: 1, RemainingMatches: 3, TotalPoint: 10}
	store := newFakeStore(winner)
	points := &fakePoints{points: map[string]int64{"ghost": 5}}

	res, err := testService(store, points, &fakeDispatcher{}).Settle(context.Background(), settled("m1", "w", "ghost"))
	if err != nil {
		t.Fatalf("settle: %v", err)
	}

	if res.Winner == nil {
		t.Fatalf("winner not settled")
	}
	if res.Loser != nil {
		t.Fatalf("vanished loser should not be settled")
	}
	if len(points.removed) != 1 || points.removed[0] != "ghost" {
		t.Fatalf("removed = %v, want ghost", points.removed)
	}
	if _, ok := points.points["ghost"]; ok {
		t.Fatalf("ghost still ranked: %v", points.points)
	}
}

func TestSettleWinnerFailureSkipsLoser(t *testing.T) {
	winner := &domain.User{ID: "w", Level: 1, RemainingMatches: 3}
	loser := &domain.User{ID: "l", Level: 1, RemainingMatches: 3}
	store := newFakeStore(winner, loser)
	// Two failures exhaust the single retry.
	store.applyFailures["w"] = 2

	res, err := testService(store, nil, &fakeDispatcher{}).Settle(context.Background(), settled("m1", "w", "l"))
	if err != nil {
		t.Fatalf("settle: %v", err)
	}

	if res.Winner != nil {
		t.Fatalf("winner should not be settled")
	}
	if res.Loser != nil {
		t.Fatalf("loser should be skipped after winner failure")
	}
	if loser.TotalKeep != 0 || loser.RemainingMatches != 3 {
		t.Fatalf("loser was settled: keep=%d quota=%d", loser.TotalKeep, loser.RemainingMatches)
	}
}
