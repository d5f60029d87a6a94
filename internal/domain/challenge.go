package domain

import "time"

// PendingChallenge is a transient in-memory invitation from one player to
// another. At most one exists per directed pair; a reverse invite
// collapses the pair into an immediate match (mutual accept).
type PendingChallenge struct {
	ChallengerID string
	TargetID     string
	CreatedAt    time.Time
}

// ChallengeOutcome records how a pending challenge ended, for the
// best-effort audit trail.
type ChallengeOutcome string

const (
	ChallengeAccepted  ChallengeOutcome = "accepted"
	ChallengeDeclined  ChallengeOutcome = "declined"
	ChallengeExpired   ChallengeOutcome = "expired"
	ChallengeCancelled ChallengeOutcome = "cancelled"
)

// ChallengeAudit is the optional persisted observability row for one
// challenge lifecycle.
type ChallengeAudit struct {
	ID        string           `json:"id"`
	FromID    string           `json:"from"`
	ToID      string           `json:"to"`
	Outcome   ChallengeOutcome `json:"outcome"`
	CreatedAt time.Time        `json:"created_at"`
}
