package challenge

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kickin-server/internal/domain"
	"github.com/kickin-server/internal/random"
)

// Resolver turns an accepted challenge into a decided match: a fair
// coin assigns roles, each side draws uniformly from its skill pool,
// and the goalkeeper wins exactly when the drawn goalkeeper skill is
// the catalog counter of the drawn kicker skill.
type Resolver struct {
	catalog  *domain.SkillCatalog
	selector *random.Selector
}

// NewResolver builds a resolver over the skill catalog.
func NewResolver(catalog *domain.SkillCatalog, selector *random.Selector) *Resolver {
	return &Resolver{catalog: catalog, selector: selector}
}

// Resolve decides a match between two human players.
func (r *Resolver) Resolve(a, b *domain.User, now time.Time) (*domain.MatchRecord, error) {
	anyVIP := a.IsVIP || b.IsVIP

	flip, err := r.selector.Intn(random.OpRoleAssignment, anyVIP, 2)
	if err != nil {
		return nil, fmt.Errorf("role assignment: %w", err)
	}

	kicker, goalkeeper := a, b
	if flip == 1 {
		kicker, goalkeeper = b, a
	}

	kickerSkill, err := r.draw(kicker.SkillsFor(domain.MatchRoleKicker), anyVIP)
	if err != nil {
		return nil, err
	}
	goalkeeperSkill, err := r.draw(goalkeeper.SkillsFor(domain.MatchRoleGoalkeeper), anyVIP)
	if err != nil {
		return nil, err
	}

	return r.record(kicker.ID, goalkeeper.ID, kickerSkill, goalkeeperSkill, now), nil
}

// ResolveBot decides a match between a human and the bot. The bot draws
// from the catalog's goalkeeper pool regardless of the role the coin
// hands it.
func (r *Resolver) ResolveBot(human *domain.User, now time.Time) (*domain.MatchRecord, error) {
	anyVIP := human.IsVIP

	flip, err := r.selector.Intn(random.OpRoleAssignment, anyVIP, 2)
	if err != nil {
		return nil, fmt.Errorf("role assignment: %w", err)
	}

	humanRole := domain.MatchRoleKicker
	if flip == 1 {
		humanRole = domain.MatchRoleGoalkeeper
	}

	humanSkill, err := r.draw(human.SkillsFor(humanRole), anyVIP)
	if err != nil {
		return nil, err
	}
	botSkill, err := r.draw(r.catalog.GoalkeeperSkills(), anyVIP)
	if err != nil {
		return nil, err
	}

	if humanRole == domain.MatchRoleKicker {
		return r.record(human.ID, domain.BotID, humanSkill, botSkill, now), nil
	}
	return r.record(domain.BotID, human.ID, botSkill, humanSkill, now), nil
}

func (r *Resolver) draw(pool []string, anyVIP bool) (string, error) {
	if len(pool) == 0 {
		return "", domain.ErrNoSkills
	}
	i, err := r.selector.Intn(random.OpSkillSelection, anyVIP, len(pool))
	if err != nil {
		return "", fmt.Errorf("skill selection: %w", err)
	}
	return pool[i], nil
}

func (r *Resolver) record(kickerID, goalkeeperID, kickerSkill, goalkeeperSkill string, now time.Time) *domain.MatchRecord {
	rec := &domain.MatchRecord{
		MatchID:         uuid.New().String(),
		Timestamp:       now,
		KickerID:        kickerID,
		GoalkeeperID:    goalkeeperID,
		KickerSkill:     kickerSkill,
		GoalkeeperSkill: goalkeeperSkill,
	}

	if r.catalog.CounterOf(kickerSkill) == goalkeeperSkill {
		rec.WinnerID = goalkeeperID
		rec.LoserID = kickerID
		rec.WinnerRole = domain.MatchRoleGoalkeeper
	} else {
		rec.WinnerID = kickerID
		rec.LoserID = goalkeeperID
		rec.WinnerRole = domain.MatchRoleKicker
	}
	return rec
}
