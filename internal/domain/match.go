package domain

import "time"

// MatchRole is the role a player holds for one resolved match
type MatchRole string

const (
	MatchRoleKicker     MatchRole = "kicker"
	MatchRoleGoalkeeper MatchRole = "goalkeeper"
)

// Opposite returns the other match role.
func (r MatchRole) Opposite() MatchRole {
	if r == MatchRoleKicker {
		return MatchRoleGoalkeeper
	}
	return MatchRoleKicker
}

// BotID is the reserved opponent id for the bot-challenge path. The bot
// has no user row and only the human side of a bot match is settled.
const BotID = "bot"

// MatchRecord is the append-only audit row of one resolved match. It is
// written exactly once by the settlement service and is the source of
// truth for reconciliation.
type MatchRecord struct {
	MatchID         string    `json:"match_id"`
	Timestamp       time.Time `json:"timestamp"`
	KickerID        string    `json:"kicker_id"`
	GoalkeeperID    string    `json:"goalkeeper_id"`
	KickerSkill     string    `json:"kicker_skill"`
	GoalkeeperSkill string    `json:"goalkeeper_skill"`
	WinnerID        string    `json:"winner_id"`
	LoserID         string    `json:"loser_id"`
	WinnerRole      MatchRole `json:"winner_role"`
}

// LoserRole returns the role held by the losing side.
func (m *MatchRecord) LoserRole() MatchRole {
	return m.WinnerRole.Opposite()
}

// RoleOf returns the role the given participant held, assuming the id is
// one of the two participants.
func (m *MatchRecord) RoleOf(userID string) MatchRole {
	if userID == m.KickerID {
		return MatchRoleKicker
	}
	return MatchRoleGoalkeeper
}

// IsBotMatch reports whether one side of the match is the bot.
func (m *MatchRecord) IsBotMatch() bool {
	return m.KickerID == BotID || m.GoalkeeperID == BotID
}

// LevelEvent describes a level transition caused by one settlement. It is
// informational for the client and rides the match_result payload.
type LevelEvent struct {
	UserID    string `json:"user_id"`
	PrevLevel int    `json:"prev_level"`
	NewLevel  int    `json:"new_level"`
}

// RewardEvent is handed to the reward dispatcher when a player's total
// wins reach a multiple of ten. Dispatch is fire-and-forget; settlement
// never waits for it.
type RewardEvent struct {
	UserID    string    `json:"user_id"`
	Milestone int64     `json:"milestone"`
	MatchID   string    `json:"match_id"`
	Timestamp time.Time `json:"timestamp"`
}
