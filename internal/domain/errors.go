package domain

import "errors"

// Domain errors
var (
	ErrAuthFailed     = errors.New("authentication failed")
	ErrUserNotFound   = errors.New("user not found")
	ErrUserInactive   = errors.New("user inactive")
	ErrNotConnected   = errors.New("target is not connected")
	ErrNoQuota        = errors.New("no matches remaining")
	ErrNoSkills       = errors.New("no skills to draw from")
	ErrSelfChallenge  = errors.New("cannot challenge yourself")
	ErrNoPending      = errors.New("no pending challenge")
	ErrBadMessage     = errors.New("bad message")
	ErrSkillNotFound  = errors.New("skill not found")
	ErrMatchNotFound  = errors.New("match not found")
	ErrDuplicateMatch = errors.New("match already settled")
)

// IsUserError reports whether an error should reach the offending client
// as an error frame rather than being treated as an internal failure.
func IsUserError(err error) bool {
	return errors.Is(err, ErrNotConnected) ||
		errors.Is(err, ErrNoQuota) ||
		errors.Is(err, ErrNoSkills) ||
		errors.Is(err, ErrSelfChallenge) ||
		errors.Is(err, ErrNoPending) ||
		errors.Is(err, ErrBadMessage)
}

// IsNotFoundError checks if an error is a not-found type error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrUserNotFound) || errors.Is(err, ErrSkillNotFound) || errors.Is(err, ErrMatchNotFound)
}
