package lobby

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/kickin-server/internal/chat"
	"github.com/kickin-server/internal/clock"
	"github.com/kickin-server/internal/domain"
)

// engineTimeout bounds the store work behind a single inbound frame.
const engineTimeout = 10 * time.Second

// route dispatches one inbound frame. A handler panic is converted to
// an error frame so one bad frame never takes the connection down.
func (l *Lobby) route(s *Session, user *domain.User, in *Inbound) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("frame handler panic", "user_id", user.ID, "type", in.Type, "panic", r)
			s.Send(errorFrame("internal error"))
		}
	}()

	switch in.Type {
	case FrameTypePing:
		s.Send(PongFrame{Type: FrameTypePong, Timestamp: clock.Stamp(l.zone.Now())})

	case FrameTypeChat:
		l.handleChat(s, user, in.Content)

	case FrameTypeChallenge:
		l.handleChallenge(s, user, in.TargetID)

	case FrameTypeChallengeResponse:
		l.handleChallengeResponse(s, user, in.FromID, in.Accepted)

	default:
		s.Send(errorFrame("unknown message type"))
	}
}

// handleChat validates, filters and broadcasts one chat message to
// every connected user, sender included.
func (l *Lobby) handleChat(s *Session, user *domain.User, content string) {
	content = strings.TrimSpace(content)
	if content == "" {
		s.Send(errorFrame("empty message"))
		return
	}
	if len(content) > l.cfg.MaxChatBytes {
		s.Send(errorFrame("message too long"))
		return
	}

	verdict, filtered := l.filter.Check(content)
	if verdict == chat.Rejected {
		s.Send(errorFrame("message rejected"))
		return
	}
	if verdict == chat.Filtered {
		content = filtered
	}

	l.registry.Broadcast(ChatFrame{
		Type: FrameTypeChat,
		User: ChatUser{
			ID:       user.ID,
			Name:     user.Name,
			Avatar:   user.Avatar,
			UserType: user.Kind,
		},
		Content:   content,
		Timestamp: clock.Stamp(l.zone.Now()),
	}, "")
}

func (l *Lobby) handleChallenge(s *Session, user *domain.User, targetID string) {
	if targetID == "" {
		s.Send(errorFrame("target_id required"))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), engineTimeout)
	defer cancel()

	challenger, err := l.engine.Invite(ctx, user.ID, targetID)
	if err != nil {
		l.sendEngineError(s, user.ID, err)
		return
	}
	if challenger == nil {
		// Resolved immediately (bot or mutual invite) or dropped as a
		// duplicate; either way there is no new invite to deliver.
		return
	}

	l.registry.Send(targetID, ChallengeInviteFrame{
		Type:      FrameTypeChallengeInvite,
		From:      challenger.ID,
		FromName:  challenger.Name,
		Timestamp: clock.Stamp(l.zone.Now()),
	})
}

func (l *Lobby) handleChallengeResponse(s *Session, user *domain.User, fromID string, accepted bool) {
	if fromID == "" {
		s.Send(errorFrame("from_id required"))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), engineTimeout)
	defer cancel()

	if err := l.engine.Respond(ctx, user.ID, fromID, accepted); err != nil {
		l.sendEngineError(s, user.ID, err)
	}
}

// sendEngineError maps a challenge-flow failure to a client-facing
// error frame. Unexpected errors are logged and reported generically.
func (l *Lobby) sendEngineError(s *Session, userID string, err error) {
	if !domain.IsUserError(err) && !errors.Is(err, domain.ErrUserNotFound) {
		l.logger.Error("challenge flow failed", "user_id", userID, "error", err)
		s.Send(errorFrame("internal error"))
		return
	}

	switch {
	case errors.Is(err, domain.ErrSelfChallenge):
		s.Send(errorFrame("cannot challenge yourself"))
	case errors.Is(err, domain.ErrNotConnected):
		s.Send(errorFrame("target is not connected"))
	case errors.Is(err, domain.ErrNoQuota):
		s.Send(errorFrame("no remaining matches"))
	case errors.Is(err, domain.ErrNoPending):
		s.Send(errorFrame("no pending challenge"))
	case errors.Is(err, domain.ErrNoSkills):
		s.Send(errorFrame("no skills configured"))
	default:
		s.Send(errorFrame("user not found"))
	}
}
