package lobby

import (
	"encoding/json"
	"fmt"

	"github.com/kickin-server/internal/domain"
)

// Frame types
const (
	FrameTypePing              = "ping"
	FrameTypePong              = "pong"
	FrameTypeChat              = "chat"
	FrameTypeChallenge         = "challenge"
	FrameTypeChallengeResponse = "challenge_response"
	FrameTypeUserList          = "user_list"
	FrameTypeLeaderboard       = "leaderboard"
	FrameTypeChallengeInvite   = "challenge_invite"
	FrameTypeChallengeExpired  = "challenge_expired"
	FrameTypeMatchResult       = "match_result"
	FrameTypeError             = "error"
)

// Inbound is the envelope of every client frame. Fields beyond Type are
// populated per frame type; unknown types are answered with an error
// frame and never close the connection.
type Inbound struct {
	Type     string `json:"type"`
	Content  string `json:"content,omitempty"`
	TargetID string `json:"target_id,omitempty"`
	FromID   string `json:"from_id,omitempty"`
	Accepted bool   `json:"accepted,omitempty"`
}

// PingFrame is the heartbeat sent by the registry; clients answer with
// an inbound ping of their own.
type PingFrame struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
}

// PongFrame answers a client ping with the server time.
type PongFrame struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
}

// UserListFrame is the presence snapshot and delta. Clients replace
// their presence state with each frame rather than diffing.
type UserListFrame struct {
	Type  string              `json:"type"`
	Users []domain.PublicUser `json:"users"`
}

// LeaderboardFrame carries the top players by total point.
type LeaderboardFrame struct {
	Type string              `json:"type"`
	Data []domain.PublicUser `json:"data"`
}

// ChatUser is the sender projection attached to a chat broadcast.
type ChatUser struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Avatar   string          `json:"avatar,omitempty"`
	UserType domain.UserKind `json:"user_type"`
}

// ChatFrame is a broadcast lobby chat message.
type ChatFrame struct {
	Type      string   `json:"type"`
	User      ChatUser `json:"user"`
	Content   string   `json:"content"`
	Timestamp string   `json:"timestamp"`
}

// ChallengeInviteFrame notifies the target of a new pending challenge.
type ChallengeInviteFrame struct {
	Type      string `json:"type"`
	From      string `json:"from"`
	FromName  string `json:"from_name"`
	Timestamp string `json:"timestamp"`
}

// ChallengeExpiredFrame tells a party the pending challenge with
// other_id is gone (timeout, decline or disconnect).
type ChallengeExpiredFrame struct {
	Type    string `json:"type"`
	OtherID string `json:"other_id"`
}

// LevelUp rides the match result when settlement moved a level.
type LevelUp struct {
	PrevLevel int `json:"prev_level"`
	NewLevel  int `json:"new_level"`
}

// MatchResultFrame is delivered to both participants of a resolved
// match. Both copies carry the same match id and timestamp.
type MatchResultFrame struct {
	Type            string   `json:"type"`
	MatchID         string   `json:"match_id"`
	KickerID        string   `json:"kicker_id"`
	GoalkeeperID    string   `json:"goalkeeper_id"`
	KickerSkill     string   `json:"kicker_skill"`
	GoalkeeperSkill string   `json:"goalkeeper_skill"`
	WinnerID        string   `json:"winner_id"`
	WinnerRole      string   `json:"winner_role"`
	LoserID         string   `json:"loser_id"`
	LoserRole       string   `json:"loser_role"`
	Timestamp       string   `json:"timestamp"`
	WinnerLevelUp   *LevelUp `json:"winner_level_up,omitempty"`
	LoserLevelUp    *LevelUp `json:"loser_level_up,omitempty"`
}

// ErrorFrame reports a per-sender failure. It never closes the session.
type ErrorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// EncodeFrame marshals an outbound frame to its wire form.
func EncodeFrame(frame any) ([]byte, error) {
	data, err := json.Marshal(frame)
	if err != nil {
		return nil, fmt.Errorf("encoding frame: %w", err)
	}
	return data, nil
}

// DecodeInbound parses one client frame.
func DecodeInbound(raw []byte) (*Inbound, error) {
	var in Inbound
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, domain.ErrBadMessage
	}
	if in.Type == "" {
		return nil, domain.ErrBadMessage
	}
	return &in, nil
}

func errorFrame(message string) ErrorFrame {
	return ErrorFrame{Type: FrameTypeError, Message: message}
}
