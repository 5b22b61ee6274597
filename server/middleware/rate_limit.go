package middleware

import (
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	apperrors "github.com/hrygo/apptscheduler/server/internal/errors"
)

const (
	// idleTimeout is how long a client limiter is kept after its last request.
	idleTimeout = 10 * time.Minute
	// sweepInterval bounds how often idle limiters are evicted.
	sweepInterval = time.Minute
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter provides per-client rate limiting.
type RateLimiter struct {
	mu        sync.Mutex
	limits    map[string]*clientLimiter
	every     rate.Limit
	burst     int
	lastSweep time.Time
	// now is replaced in tests.
	now func() time.Time
}

// NewRateLimiter creates a new rate limiter allowing perSecond requests per
// key with the given burst. Non-positive values fall back to 10 rps, burst 20.
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	if perSecond <= 0 {
		perSecond = 10
	}
	if burst <= 0 {
		burst = 20
	}
	return &RateLimiter{
		limits: make(map[string]*clientLimiter),
		every:  rate.Limit(perSecond),
		burst:  burst,
		now:    time.Now,
	}
}

// getLimiter gets or creates a limiter for the given key, evicting idle
// limiters at most once per sweepInterval.
func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastSweep) >= sweepInterval {
		for k, cl := range rl.limits {
			if now.Sub(cl.lastSeen) > idleTimeout {
				delete(rl.limits, k)
			}
		}
		rl.lastSweep = now
	}

	cl, ok := rl.limits[key]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(rl.every, rl.burst)}
		rl.limits[key] = cl
	}
	cl.lastSeen = now
	return cl.limiter
}

// Allow checks if a request is allowed for the given key.
func (rl *RateLimiter) Allow(key string) bool {
	return rl.getLimiter(key).AllowN(rl.now(), 1)
}

// size returns the number of tracked clients.
func (rl *RateLimiter) size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limits)
}

// Middleware rejects requests over the limit with RATE_LIMIT_EXCEEDED,
// keyed by client IP. Rendering is left to the echo error handler.
func (rl *RateLimiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !rl.Allow(c.RealIP()) {
				return apperrors.RateLimitExceeded("too many requests")
			}
			return next(c)
		}
	}
}
