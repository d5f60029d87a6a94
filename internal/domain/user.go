package domain

import "time"

// UserKind distinguishes how an account was created
type UserKind string

const (
	UserKindGuest      UserKind = "guest"
	UserKindRegistered UserKind = "registered"
	UserKindAdmin      UserKind = "admin"
)

// RolePreference is the role a player prefers to be assigned
type RolePreference string

const (
	RoleKicker     RolePreference = "kicker"
	RoleGoalkeeper RolePreference = "goalkeeper"
	RoleBoth       RolePreference = "both"
)

// VIPTier is derived from the amount a user has spent, never stored directly
type VIPTier string

const (
	VIPTierNone    VIPTier = "NONE"
	VIPTierSilver  VIPTier = "SILVER"
	VIPTierGold    VIPTier = "GOLD"
	VIPTierRuby    VIPTier = "RUBY"
	VIPTierEmerald VIPTier = "EMERALD"
	VIPTierDiamond VIPTier = "DIAMOND"
)

// WeekStat is one append-only entry of a user's weekly history
type WeekStat struct {
	WeekID string `json:"week_id"`
	Point  int64  `json:"point"`
	Wins   int64  `json:"wins"`
}

// User is the persisted identity of a player
type User struct {
	ID                   string         `json:"id"`
	Name                 string         `json:"name"`
	Kind                 UserKind       `json:"kind"`
	Avatar               string         `json:"avatar,omitempty"`
	Role                 RolePreference `json:"role"`
	KickerSkills         []string       `json:"kicker_skills"`
	GoalkeeperSkills     []string       `json:"goalkeeper_skills"`
	TotalKicked          int64          `json:"total_kicked"`
	KickedWin            int64          `json:"kicked_win"`
	TotalKeep            int64          `json:"total_keep"`
	KeepWin              int64          `json:"keep_win"`
	TotalPoint           int64          `json:"total_point"`
	AvailableSkillPoints int64          `json:"available_skill_points"`
	RemainingMatches     int64          `json:"remaining_matches"`
	Level                int            `json:"level"`
	LegendLevel          int            `json:"legend_level"`
	VIPAmount            int64          `json:"vip_amount"`
	IsPro                bool           `json:"is_pro"`
	IsVIP                bool           `json:"is_vip"`
	Verified             bool           `json:"verified"`
	Active               bool           `json:"active"`
	WeekHistory          []WeekStat     `json:"week_history,omitempty"`
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
	LastActiveAt         time.Time      `json:"last_active_at"`
}

// SkillsFor returns the user's skill pool for the given match role.
func (u *User) SkillsFor(role MatchRole) []string {
	if role == MatchRoleKicker {
		return u.KickerSkills
	}
	return u.GoalkeeperSkills
}

// TotalWins is the sum of wins in both roles.
func (u *User) TotalWins() int64 {
	return u.KickedWin + u.KeepWin
}

// PublicUser is the broadcast-safe projection of a User shown to other
// lobby members. Everything here is visible to every connected client.
type PublicUser struct {
	ID               string         `json:"id"`
	Name             string         `json:"name"`
	Avatar           string         `json:"avatar,omitempty"`
	Kind             UserKind       `json:"user_type"`
	Role             RolePreference `json:"role"`
	Verified         bool           `json:"verified"`
	Level            int            `json:"level"`
	VIPTier          VIPTier        `json:"vip_tier"`
	TotalPoint       int64          `json:"total_point"`
	KickerSkills     []string       `json:"kicker_skills"`
	GoalkeeperSkills []string       `json:"goalkeeper_skills"`
	TotalKicked      int64          `json:"total_kicked"`
	KickedWin        int64          `json:"kicked_win"`
	TotalKeep        int64          `json:"total_keep"`
	KeepWin          int64          `json:"keep_win"`
	IsPro            bool           `json:"is_pro"`
	ConnectedAt      time.Time      `json:"connected_at"`
}

// Public builds the broadcast-safe projection of the user.
func (u *User) Public(connectedAt time.Time) PublicUser {
	return PublicUser{
		ID:               u.ID,
		Name:             u.Name,
		Avatar:           u.Avatar,
		Kind:             u.Kind,
		Role:             u.Role,
		Verified:         u.Verified,
		Level:            u.Level,
		VIPTier:          VIPTierFor(u.VIPAmount),
		TotalPoint:       u.TotalPoint,
		KickerSkills:     u.KickerSkills,
		GoalkeeperSkills: u.GoalkeeperSkills,
		TotalKicked:      u.TotalKicked,
		KickedWin:        u.KickedWin,
		TotalKeep:        u.TotalKeep,
		KeepWin:          u.KeepWin,
		IsPro:            u.IsPro,
		ConnectedAt:      connectedAt,
	}
}
