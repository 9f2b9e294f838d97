package api

import (
	"net"
	"net/http"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiter manages per-client rate limiting for API requests.
type RateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex

	limit     rate.Limit
	burstSize int
}

// NewRateLimiter creates a rate limiter allowing rps requests per second per
// client.
func NewRateLimiter(rps int) *RateLimiter {
	if rps <= 0 {
		rps = 10
	}
	return &RateLimiter{
		limiters:  make(map[string]*rate.Limiter),
		limit:     rate.Limit(rps),
		burstSize: rps * 2,
	}
}

// getLimiter returns the rate limiter for a client key.
func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.RLock()
	limiter, exists := rl.limiters[key]
	rl.mu.RUnlock()

	if exists {
		return limiter
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	// Double-check in case another goroutine created it
	if limiter, exists := rl.limiters[key]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(rl.limit, rl.burstSize)
	rl.limiters[key] = limiter

	return limiter
}

// RateLimitMiddleware creates a middleware that enforces per-client rate
// limiting keyed by remote IP.
func RateLimitMiddleware(rl *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientKey(r)

			if !rl.getLimiter(key).Allow() {
				respondError(w, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED",
					"Too many requests, slow down", nil)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientKey extracts the client identity for rate limiting.
func clientKey(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
