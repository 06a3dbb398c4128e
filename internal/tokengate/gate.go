// Package tokengate issues and redeems single-use access tokens for the
// restricted content root.
//
// Tokens are opaque random strings. A token is born live with a short
// lifetime, is consumed exactly once when its holder lands on the
// restricted area, and then stays known in its consumed state until the
// client explicitly invalidates it, so media requests during a viewing
// session keep working. All state is in memory; a restart revokes
// everything, which is the intended failure mode.
package tokengate

import (
	"crypto/rand"
	"encoding/base64"
	"sync"
	"time"
)

// Scope is the visibility a request has been granted.
type Scope int

const (
	// Public grants only the public content root.
	Public Scope = iota

	// Restricted grants the restricted content root as well.
	Restricted
)

func (s Scope) String() string {
	if s == Restricted {
		return "restricted"
	}
	return "public"
}

// Outcome classifies a redemption attempt.
type Outcome int

const (
	// Granted means the token was live and has now been consumed.
	Granted Outcome = iota

	// RejectedUnknown means the token was never issued, expired, or was
	// invalidated. Indistinguishable on purpose.
	RejectedUnknown

	// RejectedAlreadyUsed means the token exists but was consumed
	// before. The caller reports this distinctly so a double-click on a
	// share link produces a comprehensible error.
	RejectedAlreadyUsed
)

type entry struct {
	consumed  bool
	expiresAt time.Time
}

// Gate tracks issued tokens. Safe for concurrent use.
type Gate struct {
	mu     sync.Mutex
	tokens map[string]entry
	ttl    time.Duration
	now    func() time.Time
}

// Option configures a Gate.
type Option func(*Gate)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// New builds a Gate whose tokens live for ttl from the moment of
// minting. The lifetime is absolute; consumption does not extend it.
func New(ttl time.Duration, opts ...Option) *Gate {
	g := &Gate{
		tokens: make(map[string]entry),
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// TTL returns the configured token lifetime.
func (g *Gate) TTL() time.Duration { return g.ttl }

// Mint issues a fresh live token.
func (g *Gate) Mint() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the process environment is broken
		// beyond anything we can degrade to.
		panic("tokengate: crypto/rand unavailable: " + err.Error())
	}
	token := base64.RawURLEncoding.EncodeToString(buf)

	g.mu.Lock()
	defer g.mu.Unlock()
	g.sweepLocked()
	g.tokens[token] = entry{expiresAt: g.now().Add(g.ttl)}
	return token
}

// ValidateAndConsume redeems a token for entry to the restricted area.
// A live token is consumed atomically with the check; two concurrent
// redemptions of the same token yield exactly one Granted.
func (g *Gate) ValidateAndConsume(token string) Outcome {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sweepLocked()

	e, ok := g.tokens[token]
	if !ok {
		return RejectedUnknown
	}
	if e.consumed {
		return RejectedAlreadyUsed
	}
	e.consumed = true
	g.tokens[token] = e
	return Granted
}

// PeekScope reports the scope a token grants without changing its
// state. Both live and consumed tokens grant Restricted; this is what
// lets a player keep fetching media after the landing consumed the
// token.
func (g *Gate) PeekScope(token string) Scope {
	if token == "" {
		return Public
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.sweepLocked()

	if _, ok := g.tokens[token]; ok {
		return Restricted
	}
	return Public
}

// Invalidate forgets a token. Unknown tokens are a no-op; the operation
// is idempotent so clients can fire it on page unload without caring
// whether it already ran.
func (g *Gate) Invalidate(token string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.tokens, token)
}

// SweepExpired drops every live unconsumed token past its lifetime and
// returns how many were dropped. Consumed tokens have no expiry and
// leave only through Invalidate. Redemption paths sweep
// opportunistically; a background ticker calls this so an idle gate
// does not accumulate dead entries.
func (g *Gate) SweepExpired() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sweepLocked()
}

func (g *Gate) sweepLocked() int {
	now := g.now()
	n := 0
	for token, e := range g.tokens {
		if !e.consumed && now.After(e.expiresAt) {
			delete(g.tokens, token)
			n++
		}
	}
	return n
}
