package challenge

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kickin-server/internal/clock"
	"github.com/kickin-server/internal/domain"
	"github.com/kickin-server/internal/settlement"
)

// Roster answers whether a user currently has a live lobby session.
type Roster interface {
	IsConnected(userID string) bool
}

// UserSource loads the authoritative user record for precondition
// checks at invite and accept time.
type UserSource interface {
	GetUser(ctx context.Context, userID string) (*domain.User, error)
}

// AuditSink persists the optional challenge audit trail. Writes are
// best-effort; a failing sink never blocks the challenge flow.
type AuditSink interface {
	InsertChallengeAudit(ctx context.Context, a *domain.ChallengeAudit) error
}

// Settler applies the durable effects of a resolved match.
type Settler interface {
	Settle(ctx context.Context, rec *domain.MatchRecord) (*settlement.Result, error)
}

// Events receives the engine's asynchronous outcomes. The lobby
// implements it and turns calls into frames.
type Events interface {
	// ChallengeExpired reports that the pending challenge between the
	// pair is gone without a match: timeout, decline or disconnect.
	ChallengeExpired(challengerID, targetID string)

	// MatchResolved reports a decided, settled match.
	MatchResolved(rec *domain.MatchRecord, res *settlement.Result)
}

type pairKey struct {
	from string
	to   string
}

// Engine owns the pending challenge table and the challenge state
// machine. All pending state is in memory and dies with the process;
// only resolved matches are durable.
type Engine struct {
	users    UserSource
	audit    AuditSink
	roster   Roster
	resolver *Resolver
	settler  Settler
	events   Events
	clock    clock.Clock
	timeout  time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	pending map[pairKey]*domain.PendingChallenge
}

// NewEngine wires a challenge engine. audit may be nil.
func NewEngine(users UserSource, audit AuditSink, roster Roster, resolver *Resolver, settler Settler, events Events, clk clock.Clock, timeout time.Duration, logger *slog.Logger) *Engine {
	return &Engine{
		users:    users,
		audit:    audit,
		roster:   roster,
		resolver: resolver,
		settler:  settler,
		events:   events,
		clock:    clk,
		timeout:  timeout,
		logger:   logger,
		pending:  make(map[pairKey]*domain.PendingChallenge),
	}
}

// PendingCount returns the number of open challenges, for stats.
func (e *Engine) PendingCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}

// Invite opens a challenge from one player to another. The returned
// challenger record is non-nil when a new pending challenge was
// created and the target should get an invite frame. A reverse pending
// from the target collapses the pair into an immediate match, and a
// target of "bot" resolves immediately with no pending record; both
// paths report their outcome through Events and return (nil, nil).
// A duplicate invite for an already-pending pair is dropped silently.
func (e *Engine) Invite(ctx context.Context, fromID, targetID string) (*domain.User, error) {
	if fromID == targetID {
		return nil, domain.ErrSelfChallenge
	}

	if targetID == domain.BotID {
		return nil, e.inviteBot(ctx, fromID)
	}

	if !e.roster.IsConnected(targetID) {
		return nil, domain.ErrNotConnected
	}

	from, err := e.users.GetUser(ctx, fromID)
	if err != nil {
		return nil, err
	}
	target, err := e.users.GetUser(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if from.RemainingMatches <= 0 || target.RemainingMatches <= 0 {
		return nil, domain.ErrNoQuota
	}

	now := e.clock.Now()

	e.mu.Lock()
	if reverse, ok := e.pending[pairKey{targetID, fromID}]; ok {
		// Mutual invite: both sides want the match, play it now.
		delete(e.pending, pairKey{targetID, fromID})
		e.mu.Unlock()

		e.writeAudit(domain.ChallengeAccepted, reverse.ChallengerID, reverse.TargetID, reverse.CreatedAt)
		if err := e.play(ctx, target, from); err != nil {
			// The pair is gone either way; clear the other side's UI.
			e.events.ChallengeExpired(targetID, fromID)
			return nil, err
		}
		return nil, nil
	}

	if _, ok := e.pending[pairKey{fromID, targetID}]; ok {
		e.mu.Unlock()
		return nil, nil
	}

	e.pending[pairKey{fromID, targetID}] = &domain.PendingChallenge{
		ChallengerID: fromID,
		TargetID:     targetID,
		CreatedAt:    now,
	}
	e.mu.Unlock()

	e.logger.Info("challenge opened", "from", fromID, "to", targetID)
	return from, nil
}

// inviteBot plays an immediate match against the bot. Only the human
// side is settled.
func (e *Engine) inviteBot(ctx context.Context, fromID string) error {
	human, err := e.users.GetUser(ctx, fromID)
	if err != nil {
		return err
	}
	if human.RemainingMatches <= 0 {
		return domain.ErrNoQuota
	}

	rec, err := e.resolver.ResolveBot(human, e.clock.Now())
	if err != nil {
		return err
	}
	return e.settle(ctx, rec)
}

// Respond answers a pending challenge addressed to the responder. An
// accept plays the match; a decline discards the pending challenge and
// notifies the challenger. Responding to a challenge that is not
// pending, including one the sweep already expired, is ErrNoPending.
func (e *Engine) Respond(ctx context.Context, responderID, challengerID string, accepted bool) error {
	key := pairKey{challengerID, responderID}
	now := e.clock.Now()

	e.mu.Lock()
	pc, ok := e.pending[key]
	if ok && now.Sub(pc.CreatedAt) > e.timeout {
		delete(e.pending, key)
		ok = false
	}
	if !ok {
		e.mu.Unlock()
		return domain.ErrNoPending
	}
	delete(e.pending, key)
	e.mu.Unlock()

	if !accepted {
		e.logger.Info("challenge declined", "from", challengerID, "to", responderID)
		e.writeAudit(domain.ChallengeDeclined, challengerID, responderID, pc.CreatedAt)
		e.events.ChallengeExpired(challengerID, responderID)
		return nil
	}

	challenger, err := e.users.GetUser(ctx, challengerID)
	if err != nil {
		return err
	}
	responder, err := e.users.GetUser(ctx, responderID)
	if err != nil {
		return err
	}
	if challenger.RemainingMatches <= 0 || responder.RemainingMatches <= 0 {
		e.events.ChallengeExpired(challengerID, responderID)
		return domain.ErrNoQuota
	}

	e.writeAudit(domain.ChallengeAccepted, challengerID, responderID, pc.CreatedAt)
	if err := e.play(ctx, challenger, responder); err != nil {
		e.events.ChallengeExpired(challengerID, responderID)
		return err
	}
	return nil
}

// HandleDisconnect purges every pending challenge touching the user and
// notifies the surviving parties.
func (e *Engine) HandleDisconnect(userID string) {
	e.mu.Lock()
	var purged []*domain.PendingChallenge
	for key, pc := range e.pending {
		if key.from == userID || key.to == userID {
			delete(e.pending, key)
			purged = append(purged, pc)
		}
	}
	e.mu.Unlock()

	for _, pc := range purged {
		e.logger.Info("challenge purged on disconnect",
			"from", pc.ChallengerID, "to", pc.TargetID, "disconnected", userID)
		e.writeAudit(domain.ChallengeCancelled, pc.ChallengerID, pc.TargetID, pc.CreatedAt)
		e.events.ChallengeExpired(pc.ChallengerID, pc.TargetID)
	}
}

// Run sweeps expired pending challenges until the context ends.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.sweep()
		}
	}
}

func (e *Engine) sweep() {
	now := e.clock.Now()

	e.mu.Lock()
	var expired []*domain.PendingChallenge
	for key, pc := range e.pending {
		if now.Sub(pc.CreatedAt) > e.timeout {
			delete(e.pending, key)
			expired = append(expired, pc)
		}
	}
	e.mu.Unlock()

	for _, pc := range expired {
		e.logger.Info("challenge expired", "from", pc.ChallengerID, "to", pc.TargetID)
		e.writeAudit(domain.ChallengeExpired, pc.ChallengerID, pc.TargetID, pc.CreatedAt)
		e.events.ChallengeExpired(pc.ChallengerID, pc.TargetID)
	}
}

// play resolves and settles a human match and reports it.
func (e *Engine) play(ctx context.Context, a, b *domain.User) error {
	rec, err := e.resolver.Resolve(a, b, e.clock.Now())
	if err != nil {
		return err
	}
	return e.settle(ctx, rec)
}

func (e *Engine) settle(ctx context.Context, rec *domain.MatchRecord) error {
	res, err := e.settler.Settle(ctx, rec)
	if err != nil {
		return err
	}
	if res.AlreadySettled {
		return nil
	}

	e.logger.Info("match resolved",
		"match_id", rec.MatchID,
		"kicker", rec.KickerID,
		"goalkeeper", rec.GoalkeeperID,
		"winner", rec.WinnerID,
	)
	e.events.MatchResolved(rec, res)
	return nil
}

func (e *Engine) writeAudit(outcome domain.ChallengeOutcome, fromID, toID string, createdAt time.Time) {
	if e.audit == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := e.audit.InsertChallengeAudit(ctx, &domain.ChallengeAudit{
		ID:        uuid.New().String(),
		FromID:    fromID,
		ToID:      toID,
		Outcome:   outcome,
		CreatedAt: createdAt,
	})
	if err != nil {
		e.logger.Warn("challenge audit write failed", "error", err, "outcome", string(outcome))
	}
}
