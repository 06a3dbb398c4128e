// Package ratelimit provides per-IP request limiting middleware.
//
// # In-memory token buckets, one per client IP, not shared across instances
//
// What it protects:
//   - the gate password endpoint, where unlimited guessing would defeat the
//     single-use token scheme
//   - the process itself, from a single client flooding connections
//
// What it does not protect against:
//   - distributed guessing from many source IPs
//   - bandwidth abuse, the request body is already accepted when this runs
//
// Denials emit one log line per offending IP and a counter increment per
// denied request, so a guessing run is visible without flooding the log.
package ratelimit

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/RagingGuard/simple-video-share/internal/httpmw"
)

// visitor is the per-IP state: a token bucket, the last time the IP was
// seen, and whether its first denial has been logged already. The logged
// flag resets when the entry is evicted and later re-created.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
	logged   bool
}

// IPLimiter maps client IPs to token buckets and evicts idle entries in the
// background.
type IPLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor

	// bucket refill rate and capacity
	perSecond rate.Limit
	burst     int

	// idle entries older than ttl are removed by the cleanup loop
	ttl time.Duration

	// maxVisitors caps the map size so unique-IP floods cannot grow memory
	// without bound. Zero disables the cap.
	maxVisitors int
	capacityHit bool

	// OnFirstDenied fires once per visitor on their first denial. ip is the
	// bare IP string without a port.
	OnFirstDenied func(ip string)

	// OnDenied fires on every denied request.
	OnDenied func(ip string)

	// OnCapacity fires once when the visitor cap first rejects a new IP,
	// then again only after eviction brings the map back under the cap.
	OnCapacity func()
}

type Option func(*IPLimiter)

// WithRate sets the bucket refill rate and capacity. WithRate(1, 5) admits
// five password attempts immediately, then one more per second.
func WithRate(perSecond float64, burst int) Option {
	return func(l *IPLimiter) {
		l.perSecond = rate.Limit(perSecond)
		l.burst = burst
	}
}

// WithTTL sets how long an idle IP keeps its bucket before eviction.
func WithTTL(d time.Duration) Option {
	return func(l *IPLimiter) {
		l.ttl = d
	}
}

// WithOnFirstDenied sets the once-per-visitor denial callback. Separate from
// OnDenied so the caller can log once but count every denial.
func WithOnFirstDenied(fn func(ip string)) Option {
	return func(l *IPLimiter) {
		l.OnFirstDenied = fn
	}
}

// WithOnDenied sets the every-denial callback.
func WithOnDenied(fn func(ip string)) Option {
	return func(l *IPLimiter) {
		l.OnDenied = fn
	}
}

// WithMaxVisitors caps how many distinct IPs can hold buckets at once. Zero
// disables the cap.
func WithMaxVisitors(n int) Option {
	return func(l *IPLimiter) {
		l.maxVisitors = n
	}
}

// WithOnCapacity sets the callback fired when the visitor cap starts
// rejecting new IPs.
func WithOnCapacity(fn func()) Option {
	return func(l *IPLimiter) {
		l.OnCapacity = fn
	}
}

// New builds an IPLimiter and starts its eviction goroutine. The goroutine
// exits when ctx is cancelled at shutdown.
func New(ctx context.Context, opts ...Option) *IPLimiter {
	l := &IPLimiter{
		visitors:    make(map[string]*visitor),
		perSecond:   10,
		burst:       30,
		ttl:         5 * time.Minute,
		maxVisitors: 100000,
	}
	for _, o := range opts {
		o(l)
	}
	go l.cleanup(ctx)
	return l
}

// allow reports whether ip is within its limit, creating the bucket on first
// sight and firing the denial hooks as needed.
func (l *IPLimiter) allow(ip string) bool {
	l.mu.Lock()
	v, exists := l.visitors[ip]
	if !exists {
		if l.maxVisitors > 0 && len(l.visitors) >= l.maxVisitors {
			fireCapacity := !l.capacityHit
			l.capacityHit = true
			l.mu.Unlock()
			if fireCapacity && l.OnCapacity != nil {
				l.OnCapacity()
			}
			if l.OnDenied != nil {
				l.OnDenied(ip)
			}
			return false
		}
		v = &visitor{
			limiter: rate.NewLimiter(l.perSecond, l.burst),
		}
		l.visitors[ip] = v
	}
	v.lastSeen = time.Now()
	allowed := v.limiter.Allow()

	if !allowed && !v.logged {
		v.logged = true
		// hooks may log or touch metrics, so drop the lock before calling them
		l.mu.Unlock()
		if l.OnFirstDenied != nil {
			l.OnFirstDenied(ip)
		}
		if l.OnDenied != nil {
			l.OnDenied(ip)
		}
		return false
	}

	l.mu.Unlock()

	if !allowed && l.OnDenied != nil {
		l.OnDenied(ip)
	}

	return allowed
}

// cleanup evicts idle visitors. Ticks at half the TTL so stale entries never
// outlive the TTL by much.
func (l *IPLimiter) cleanup(ctx context.Context) {
	ticker := time.NewTicker(l.ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			l.mu.Lock()
			for ip, v := range l.visitors {
				if now.Sub(v.lastSeen) > l.ttl {
					delete(l.visitors, ip)
				}
			}
			if l.maxVisitors == 0 || len(l.visitors) < l.maxVisitors {
				l.capacityHit = false
			}
			l.mu.Unlock()
		}
	}
}

// Middleware rejects requests over the per-IP limit with 429.
func (l *IPLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// ClientIPFromContext applies the trusted-proxy rules, so a spoofed
		// X-Forwarded-For cannot mint a fresh bucket per request
		ip := httpmw.ClientIPFromContext(r.Context())

		if !l.allow(ip) {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.Header().Set("Retry-After", "30")
			w.WriteHeader(http.StatusTooManyRequests)
			// no detail about limits or refill timing in the response
			w.Write([]byte(`{"error":"too many requests"}`))
			return
		}

		next.ServeHTTP(w, r)
	})
}
