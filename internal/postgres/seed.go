package postgres

import "github.com/kickin-server/internal/domain"

// DefaultSkills is the stock skill catalog seeded on first boot. Each
// kicker skill names the goalkeeper skill that counters it.
func DefaultSkills() []domain.Skill {
	return []domain.Skill{
		// Kicker skills
		{Name: "POWER", Kind: domain.SkillKindKicker, PointCost: 1, Counter: "HIGH_CATCH"},
		{Name: "PLACEMENT", Kind: domain.SkillKindKicker, PointCost: 1, Counter: "LOW_DIVE"},
		{Name: "PANENKA", Kind: domain.SkillKindKicker, PointCost: 2, Counter: "STAY_CENTER"},
		{Name: "CHIP", Kind: domain.SkillKindKicker, PointCost: 2, Counter: "HIGH_CATCH"},
		{Name: "KNUCKLEBALL", Kind: domain.SkillKindKicker, PointCost: 3, Counter: "REFLEX_SAVE"},
		{Name: "CURVE", Kind: domain.SkillKindKicker, PointCost: 3, Counter: "SIDE_DIVE"},

		// Goalkeeper skills
		{Name: "HIGH_CATCH", Kind: domain.SkillKindGoalkeeper, PointCost: 1},
		{Name: "LOW_DIVE", Kind: domain.SkillKindGoalkeeper, PointCost: 1},
		{Name: "STAY_CENTER", Kind: domain.SkillKindGoalkeeper, PointCost: 2},
		{Name: "REFLEX_SAVE", Kind: domain.SkillKindGoalkeeper, PointCost: 3},
		{Name: "SIDE_DIVE", Kind: domain.SkillKindGoalkeeper, PointCost: 2},
	}
}
