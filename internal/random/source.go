package random

import (
	"crypto/rand"
	"fmt"
	"math/big"
	mathrand "math/rand"
	"sync"
)

// Source provides uniform integers for match decisions. Implementations
// must be safe for concurrent use.
type Source interface {
	// Intn returns a uniform integer in [0, n). n must be positive.
	Intn(n int) (int, error)
	// Name identifies the source in logs.
	Name() string
}

// Local is a process-local PRNG source.
type Local struct {
	mu  sync.Mutex
	rng *mathrand.Rand
}

// NewLocal creates a local source with the given seed. Production wiring
// seeds from the clock; tests pass a fixed seed for determinism.
func NewLocal(seed int64) *Local {
	return &Local{rng: mathrand.New(mathrand.NewSource(seed))}
}

// Intn returns a uniform integer in [0, n).
func (l *Local) Intn(n int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("intn: n must be positive, got %d", n)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rng.Intn(n), nil
}

// Name identifies the source.
func (l *Local) Name() string { return "local" }

// Verifiable draws from the external verifiable randomness provider.
// Batching and pre-warming are the provider's concern; this client only
// requests single values.
type Verifiable struct{}

// NewVerifiable creates the verifiable source.
func NewVerifiable() *Verifiable {
	return &Verifiable{}
}

// Intn returns a uniform integer in [0, n) from the provider.
func (v *Verifiable) Intn(n int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("intn: n must be positive, got %d", n)
	}
	r, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("verifiable draw: %w", err)
	}
	return int(r.Int64()), nil
}

// Name identifies the source.
func (v *Verifiable) Name() string { return "verifiable" }
