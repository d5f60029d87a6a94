package challenge

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/kickin-server/internal/domain"
	"github.com/kickin-server/internal/random"
)

// scripted returns a fixed sequence of draws, ignoring n beyond range
// reduction.
type scripted struct {
	vals []int
	i    int
}

func (s *scripted) Intn(n int) (int, error) {
	v := s.vals[s.i%len(s.vals)] % n
	s.i++
	return v, nil
}

func (s *scripted) Name() string { return "scripted" }

func testCatalog() *domain.SkillCatalog {
	return domain.NewSkillCatalog([]domain.Skill{
		{Name: "POWER", Kind: domain.SkillKindKicker, Counter: "HIGH_CATCH"},
		{Name: "CHIP", Kind: domain.SkillKindKicker, Counter: "HIGH_CATCH"},
		{Name: "HIGH_CATCH", Kind: domain.SkillKindGoalkeeper},
		{Name: "LOW_DIVE", Kind: domain.SkillKindGoalkeeper},
	})
}

func testResolver(vals ...int) *Resolver {
	src := &scripted{vals: vals}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	selector := random.NewSelector(src, src, false, logger)
	return NewResolver(testCatalog(), selector)
}

func TestResolveGoalkeeperWinsOnCounter(t *testing.T) {
	a := &domain.User{ID: "a", KickerSkills: []string{"POWER"}}
	b := &domain.User{ID: "b", GoalkeeperSkills: []string{"HIGH_CATCH"}}

	// flip=0: a kicks. Draws land on POWER vs HIGH_CATCH, its counter.
	r := testResolver(0, 0, 0)
	rec, err := r.Resolve(a, b, time.Unix(1700000000, 0))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if rec.KickerID != "a" || rec.GoalkeeperID != "b" {
		t.Fatalf("roles = %s/%s, want a/b", rec.KickerID, rec.GoalkeeperID)
	}
	if rec.WinnerID != "b" || rec.WinnerRole != domain.MatchRoleGoalkeeper {
		t.Fatalf("winner = %s (%s), want b (goalkeeper)", rec.WinnerID, rec.WinnerRole)
	}
	if rec.LoserID != "a" {
		t.Fatalf("loser = %s, want a", rec.LoserID)
	}
	if rec.MatchID == "" {
		t.Fatalf("match id empty")
	}
}

func TestResolveKickerWinsWithoutCounter(t *testing.T) {
	a := &domain.User{ID: "a", GoalkeeperSkills: []string{"LOW_DIVE"}}
	b := &domain.User{ID: "b", KickerSkills: []string{"POWER"}}

	// flip=1: b kicks. POWER vs LOW_DIVE is not the counter.
	r := testResolver(1, 0, 0)
	rec, err := r.Resolve(a, b, time.Unix(1700000000, 0))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if rec.KickerID != "b" || rec.GoalkeeperID != "a" {
		t.Fatalf("roles = %s/%s, want b/a", rec.KickerID, rec.GoalkeeperID)
	}
	if rec.WinnerID != "b" || rec.WinnerRole != domain.MatchRoleKicker {
		t.Fatalf("winner = %s (%s), want b (kicker)", rec.WinnerID, rec.WinnerRole)
	}
}

func TestResolveNoSkills(t *testing.T) {
	a := &domain.User{ID: "a"}
	b := &domain.User{ID: "b", GoalkeeperSkills: []string{"HIGH_CATCH"}}

	r := testResolver(0)
	if _, err := r.Resolve(a, b, time.Now()); !errors.Is(err, domain.ErrNoSkills) {
		t.Fatalf("err = %v, want ErrNoSkills", err)
	}
}

func TestResolveBotHumanKicks(t *testing.T) {
	human := &domain.User{ID: "h", KickerSkills: []string{"CHIP"}}

	// flip=0: human kicks, bot draws index 1 of its sorted goalkeeper
	// pool [HIGH_CATCH LOW_DIVE].
	r := testResolver(0, 0, 1)
	rec, err := r.ResolveBot(human, time.Unix(1700000000, 0))
	if err != nil {
		t.Fatalf("resolve bot: %v", err)
	}

	if rec.KickerID != "h" || rec.GoalkeeperID != domain.BotID {
		t.Fatalf("roles = %s/%s, want h/bot", rec.KickerID, rec.GoalkeeperID)
	}
	if rec.GoalkeeperSkill != "LOW_DIVE" {
		t.Fatalf("bot skill = %s, want LOW_DIVE", rec.GoalkeeperSkill)
	}
	// CHIP's counter is HIGH_CATCH; LOW_DIVE does not stop it.
	if rec.WinnerID != "h" {
		t.Fatalf("winner = %s, want h", rec.WinnerID)
	}
}

func TestResolveBotHumanKeeps(t *testing.T) {
	human := &domain.User{ID: "h", GoalkeeperSkills: []string{"HIGH_CATCH"}}

	// flip=1: human keeps goal, bot kicks from its goalkeeper pool.
	// Goalkeeper skills have no counter, so the human goalkeeper never
	// stops them and the bot wins as kicker.
	r := testResolver(1, 0, 0)
	rec, err := r.ResolveBot(human, time.Unix(1700000000, 0))
	if err != nil {
		t.Fatalf("resolve bot: %v", err)
	}

	if rec.KickerID != domain.BotID || rec.GoalkeeperID != "h" {
		t.Fatalf("roles = %s/%s, want bot/h", rec.KickerID, rec.GoalkeeperID)
	}
	if rec.WinnerID != domain.BotID {
		t.Fatalf("winner = %s, want bot", rec.WinnerID)
	}
}
