package random

import "log/slog"

// Operation tags what a random draw is used for. The policy only
// escalates role assignment and skill selection.
type Operation string

const (
	OpRoleAssignment Operation = "role_assignment"
	OpSkillSelection Operation = "skill_selection"
)

// Selector picks the randomness source for one draw. Selection is
// policy: verifiable when any participant is VIP and the operation is
// role assignment or skill selection, local otherwise.
type Selector struct {
	local      Source
	verifiable Source
	enabled    bool
	logger     *slog.Logger
}

// NewSelector creates a policy selector over the two sources.
func NewSelector(local, verifiable Source, verifiableForVIP bool, logger *slog.Logger) *Selector {
	return &Selector{
		local:      local,
		verifiable: verifiable,
		enabled:    verifiableForVIP,
		logger:     logger,
	}
}

// Pick returns the source to use for the draw.
func (s *Selector) Pick(op Operation, anyVIP bool) Source {
	if s.enabled && anyVIP && (op == OpRoleAssignment || op == OpSkillSelection) {
		return s.verifiable
	}
	return s.local
}

// Intn draws via the policy-selected source. A verifiable source failure
// falls back to the local source; it never fails the match.
func (s *Selector) Intn(op Operation, anyVIP bool, n int) (int, error) {
	src := s.Pick(op, anyVIP)
	v, err := src.Intn(n)
	if err == nil {
		return v, nil
	}
	if src == s.local {
		return 0, err
	}
	s.logger.Warn("verifiable source failed, falling back to local",
		"operation", string(op),
		"error", err,
	)
	return s.local.Intn(n)
}
