package domain

import (
	"sort"
	"time"
)

// SkillKind says which match role a skill belongs to
type SkillKind string

const (
	SkillKindKicker     SkillKind = "kicker"
	SkillKindGoalkeeper SkillKind = "goalkeeper"
)

// Skill is a catalog entity. Counter is only set for kicker skills and
// names the goalkeeper skill that beats it.
type Skill struct {
	Name      string    `json:"name"`
	Kind      SkillKind `json:"kind"`
	PointCost int64     `json:"point_cost"`
	Counter   string    `json:"counter,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// SkillCatalog is an in-memory index of the skill table, keyed by name.
type SkillCatalog struct {
	byName map[string]Skill
}

// NewSkillCatalog builds a catalog from the full skill list.
func NewSkillCatalog(skills []Skill) *SkillCatalog {
	c := &SkillCatalog{byName: make(map[string]Skill, len(skills))}
	for _, s := range skills {
		c.byName[s.Name] = s
	}
	return c
}

// Lookup returns the skill with the given name.
func (c *SkillCatalog) Lookup(name string) (Skill, bool) {
	s, ok := c.byName[name]
	return s, ok
}

// CounterOf returns the goalkeeper skill that counters the named kicker
// skill, or "" when the skill is unknown or has no counter.
func (c *SkillCatalog) CounterOf(kickerSkill string) string {
	s, ok := c.byName[kickerSkill]
	if !ok || s.Kind != SkillKindKicker {
		return ""
	}
	return s.Counter
}

// GoalkeeperSkills returns the names of every goalkeeper skill in the
// catalog, sorted. This is the bot's skill pool.
func (c *SkillCatalog) GoalkeeperSkills() []string {
	var names []string
	for name, s := range c.byName {
		if s.Kind == SkillKindGoalkeeper {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Len returns the number of skills in the catalog.
func (c *SkillCatalog) Len() int {
	return len(c.byName)
}
