package settlement

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/kickin-server/internal/domain"
	"github.com/kickin-server/internal/reward"
)

// Store is the durable side of settlement.
type Store interface {
	InsertMatch(ctx context.Context, m *domain.MatchRecord) error
	ApplyMatchOutcome(ctx context.Context, userID string, role domain.MatchRole, won bool, at time.Time) (*domain.User, error)
	SetUserLevel(ctx context.Context, userID string, level, legend int, isPro bool) error
}

// PointsSink receives leaderboard point updates after settlement. It is
// a warm cache, so failures are logged and ignored.
type PointsSink interface {
	SetPoint(ctx context.Context, userID string, point int64) error
	Remove(ctx context.Context, userID string) error
}

// Result carries the post-settlement user records and any level
// transitions for delivery to the participants.
type Result struct {
	AlreadySettled bool
	Winner         *domain.User
	Loser          *domain.User
	WinnerLevel    *domain.LevelEvent
	LoserLevel     *domain.LevelEvent
}

// Service applies the durable effects of one resolved match: the match
// record, both participants' counters, level recomputation, the
// leaderboard projection and reward milestones. The match record goes
// in first; its unique match id makes the whole operation idempotent.
type Service struct {
	store      Store
	points     PointsSink
	rewards    reward.Dispatcher
	transient  func(error) bool
	timeout    time.Duration
	retryDelay time.Duration
	logger     *slog.Logger
}

// NewService wires a settlement service. points may be nil when no
// leaderboard projection is configured. transient classifies store
// errors worth one retry. callTimeout bounds each store call; zero
// selects a 5 second default.
func NewService(store Store, points PointsSink, rewards reward.Dispatcher, transient func(error) bool, callTimeout time.Duration, logger *slog.Logger) *Service {
	if transient == nil {
		transient = func(error) bool { return false }
	}
	if callTimeout <= 0 {
		callTimeout = 5 * time.Second
	}
	return &Service{
		store:      store,
		points:     points,
		rewards:    rewards,
		transient:  transient,
		timeout:    callTimeout,
		retryDelay: 100 * time.Millisecond,
		logger:     logger,
	}
}

// Settle records the match and applies its effects. A duplicate match
// id returns AlreadySettled with no changes. A counter update failure
// after the record is in is logged for reconciliation, never retried
// beyond the single transient retry, and does not undo the match.
func (s *Service) Settle(ctx context.Context, rec *domain.MatchRecord) (*Result, error) {
	err := s.withRetry(ctx, func(ctx context.Context) error {
		return s.store.InsertMatch(ctx, rec)
	})
	if errors.Is(err, domain.ErrDuplicateMatch) {
		s.logger.Info("match already settled", "match_id", rec.MatchID)
		return &Result{AlreadySettled: true}, nil
	}
	if err != nil {
		return nil, err
	}

	res := &Result{}

	if rec.WinnerID != domain.BotID {
		winner, err := s.applyOutcome(ctx, rec.WinnerID, rec.WinnerRole, true, rec.Timestamp)
		if err != nil {
			// The match record exists; reconciliation will repair the
			// counters from it.
			s.logger.Error("winner settlement failed",
				"match_id", rec.MatchID,
				"user_id", rec.WinnerID,
				"error", err,
			)
			if errors.Is(err, domain.ErrUserNotFound) {
				s.dropPoint(ctx, rec.WinnerID)
			}
			return res, nil
		}
		res.Winner = winner
		res.WinnerLevel = s.recomputeLevel(ctx, winner)
		s.pushPoint(ctx, winner)
		s.maybeReward(rec, winner)
	}

	if rec.LoserID != domain.BotID {
		loser, err := s.applyOutcome(ctx, rec.LoserID, rec.LoserRole(), false, rec.Timestamp)
		if err != nil {
			s.logger.Error("loser settlement failed",
				"match_id", rec.MatchID,
				"user_id", rec.LoserID,
				"error", err,
			)
			if errors.Is(err, domain.ErrUserNotFound) {
				s.dropPoint(ctx, rec.LoserID)
			}
			return res, nil
		}
		res.Loser = loser
		res.LoserLevel = s.recomputeLevel(ctx, loser)
		s.pushPoint(ctx, loser)
	}

	return res, nil
}

func (s *Service) applyOutcome(ctx context.Context, userID string, role domain.MatchRole, won bool, at time.Time) (*domain.User, error) {
	var u *domain.User
	err := s.withRetry(ctx, func(ctx context.Context) error {
		var err error
		u, err = s.store.ApplyMatchOutcome(ctx, userID, role, won, at)
		return err
	})
	return u, err
}

// recomputeLevel re-derives the user's level from the point law and
// persists it when it moved. The persisted user record is updated in
// place so downstream projections see the new level.
func (s *Service) recomputeLevel(ctx context.Context, u *domain.User) *domain.LevelEvent {
	level, legend, isPro := domain.ComputeLevel(domain.PointForLevel(u))
	if level == u.Level && legend == u.LegendLevel && isPro == u.IsPro {
		return nil
	}

	prev := u.Level
	err := s.withRetry(ctx, func(ctx context.Context) error {
		return s.store.SetUserLevel(ctx, u.ID, level, legend, isPro)
	})
	if err != nil {
		s.logger.Error("level update failed", "user_id", u.ID, "error", err)
		return nil
	}

	u.Level = level
	u.LegendLevel = legend
	u.IsPro = isPro

	s.logger.Info("level changed", "user_id", u.ID, "prev_level", prev, "new_level", level)
	return &domain.LevelEvent{UserID: u.ID, PrevLevel: prev, NewLevel: level}
}

func (s *Service) pushPoint(ctx context.Context, u *domain.User) {
	if s.points == nil {
		return
	}
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.points.SetPoint(cctx, u.ID, u.TotalPoint); err != nil {
		s.logger.Warn("leaderboard point update failed", "user_id", u.ID, "error", err)
	}
}

// dropPoint removes a vanished user from the points projection so the
// leaderboard stops ranking a row that no longer exists.
func (s *Service) dropPoint(ctx context.Context, userID string) {
	if s.points == nil {
		return
	}
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.points.Remove(cctx, userID); err != nil {
		s.logger.Warn("leaderboard removal failed", "user_id", userID, "error", err)
	}
}

// maybeReward emits a reward event when the winner's combined wins hit
// a multiple of ten. Dispatch is fire-and-forget.
func (s *Service) maybeReward(rec *domain.MatchRecord, winner *domain.User) {
	wins := winner.TotalWins()
	if wins == 0 || wins%10 != 0 {
		return
	}
	s.rewards.Dispatch(domain.RewardEvent{
		UserID:    winner.ID,
		Milestone: wins,
		MatchID:   rec.MatchID,
		Timestamp: rec.Timestamp,
	})
	s.logger.Info("reward milestone reached", "user_id", winner.ID, "wins", wins)
}

// withRetry runs the store call under the settlement timeout, retrying
// once after a short delay when the failure looks transient.
func (s *Service) withRetry(ctx context.Context, fn func(context.Context) error) error {
	call := func() error {
		cctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		return fn(cctx)
	}

	err := call()
	if err == nil || !s.transient(err) {
		return err
	}

	time.Sleep(s.retryDelay)
	return call()
}
