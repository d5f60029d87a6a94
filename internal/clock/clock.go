package clock

import (
	"fmt"
	"time"
)

// Clock supplies wall time pinned to a single civil timezone. Every
// user-visible timestamp the server emits goes through it, so tests can
// substitute a fixed clock.
type Clock interface {
	Now() time.Time
}

// Zone is a fixed-timezone clock backed by the system wall clock.
type Zone struct {
	loc *time.Location
}

// NewZone loads the named IANA timezone and returns a clock pinned to it.
func NewZone(name string) (*Zone, error) {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", name, err)
	}
	return &Zone{loc: loc}, nil
}

// Now returns the current time in the configured zone.
func (z *Zone) Now() time.Time {
	return time.Now().In(z.loc)
}

// Location returns the configured zone.
func (z *Zone) Location() *time.Location {
	return z.loc
}

// Stamp formats a time the way it appears on the wire: ISO-8601 with the
// zone's fixed offset, e.g. 2024-01-02T15:04:05+07:00.
func Stamp(t time.Time) string {
	return t.Format(time.RFC3339)
}

// Fixed is a Clock that always returns the same instant. Test helper.
type Fixed struct {
	T time.Time
}

// Now returns the fixed instant.
func (f Fixed) Now() time.Time {
	return f.T
}
