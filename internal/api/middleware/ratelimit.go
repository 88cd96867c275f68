package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/sitelens/sitelens/internal/domain"
	"github.com/sitelens/sitelens/pkg/httputil"
)

// RateLimitMiddleware throttles per client IP. Audits are expensive enough
// (a browser visit plus provider calls) that a small per-minute allowance
// is plenty for legitimate use.
type RateLimitMiddleware struct {
	perMinute int

	mu       sync.Mutex
	limiters map[string]*clientLimiter
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimitMiddleware creates a rate limiter allowing perMinute requests
// per client IP with a burst of perMinute/4.
func NewRateLimitMiddleware(perMinute int) *RateLimitMiddleware {
	m := &RateLimitMiddleware{
		perMinute: perMinute,
		limiters:  make(map[string]*clientLimiter),
	}
	go m.evictLoop()
	return m
}

func (m *RateLimitMiddleware) get(ip string) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()

	cl, ok := m.limiters[ip]
	if !ok {
		burst := m.perMinute / 4
		if burst < 1 {
			burst = 1
		}
		cl = &clientLimiter{
			limiter: rate.NewLimiter(rate.Limit(float64(m.perMinute)/60.0), burst),
		}
		m.limiters[ip] = cl
	}
	cl.lastSeen = time.Now()
	return cl.limiter
}

// evictLoop drops limiters for clients not seen recently so the map does
// not grow without bound.
func (m *RateLimitMiddleware) evictLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		cutoff := time.Now().Add(-10 * time.Minute)
		m.mu.Lock()
		for ip, cl := range m.limiters {
			if cl.lastSeen.Before(cutoff) {
				delete(m.limiters, ip)
			}
		}
		m.mu.Unlock()
	}
}

// Handler returns the middleware handler
func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}

		if !m.get(ip).Allow() {
			httputil.JSONError(w, http.StatusTooManyRequests, domain.ErrCodeRateLimited,
				"rate limit exceeded", "Wait before submitting another audit.", nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}
