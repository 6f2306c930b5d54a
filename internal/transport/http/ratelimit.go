package httptransport

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"
)

const limiterIdleTTL = 10 * time.Minute

type limiterEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// PlayerLimiter throttles request bursts per tenant and player. It sits in
// front of the allowance counters and only protects the server from
// hammering; it never replaces the economy's own caps.
type PlayerLimiter struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	entries   map[string]*limiterEntry
	lastPrune time.Time
	now       func() time.Time
}

func NewPlayerLimiter(perSec float64, burst int) *PlayerLimiter {
	if burst < 1 {
		burst = 1
	}
	return &PlayerLimiter{
		limit:   rate.Limit(perSec),
		burst:   burst,
		entries: make(map[string]*limiterEntry),
		now:     time.Now,
	}
}

// Allow reports whether the key may proceed now. A non-positive rate
// disables limiting.
func (p *PlayerLimiter) Allow(key string) bool {
	if p == nil || p.limit <= 0 {
		return true
	}
	now := p.now()
	p.mu.Lock()
	defer p.mu.Unlock()
	if now.Sub(p.lastPrune) > limiterIdleTTL {
		p.pruneLocked(now)
	}
	e, ok := p.entries[key]
	if !ok {
		e = &limiterEntry{lim: rate.NewLimiter(p.limit, p.burst)}
		p.entries[key] = e
		metricRateLimiterActive.Add(1)
	}
	e.lastSeen = now
	return e.lim.AllowN(now, 1)
}

func (p *PlayerLimiter) pruneLocked(now time.Time) {
	for k, e := range p.entries {
		if now.Sub(e.lastSeen) > limiterIdleTTL {
			delete(p.entries, k)
			metricRateLimiterActive.Add(-1)
		}
	}
	p.lastPrune = now
}

// Middleware keys on the tenant_id and player_id route params, so it must
// be mounted inside the player route.
func (p *PlayerLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := chi.URLParam(r, "tenant_id") + "/" + chi.URLParam(r, "player_id")
			if !p.Allow(key) {
				metricRateLimited.Add(1)
				w.Header().Set("Retry-After", "1")
				WriteHTTPError(w, http.StatusTooManyRequests, "rate_limited")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
