package ledger

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// RateLimiterInterface is the per-entry cooldown gate. It exists purely to
// swallow accidental double-taps before any network round trip; the
// authority's own global rate limiting is separate and its 429s are
// surfaced, not absorbed here.
type RateLimiterInterface interface {
	Allow(entryID string) bool
	Record(entryID string)
}

type RateLimiter struct {
	mu       sync.Mutex
	clock    clockwork.Clock
	cooldown time.Duration
	last     map[string]time.Time
}

func NewRateLimiter(cooldown time.Duration, clock clockwork.Clock) RateLimiterInterface {
	return &RateLimiter{
		clock:    clock,
		cooldown: cooldown,
		last:     make(map[string]time.Time),
	}
}

func (r *RateLimiter) Allow(entryID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	last, ok := r.last[entryID]
	if !ok {
		return true
	}
	return r.clock.Now().Sub(last) >= r.cooldown
}

func (r *RateLimiter) Record(entryID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last[entryID] = r.clock.Now()
}
