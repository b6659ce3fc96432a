package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// limiterIdleTTL is how long a client's limiter is kept after its last request.
const limiterIdleTTL = 10 * time.Minute

// RateLimitMiddleware limits each client IP to rps requests per second. A
// non-positive rps disables limiting.
func RateLimitMiddleware(rps int) gin.HandlerFunc {
	if rps <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	limiters := newClientLimiters(rps, limiterIdleTTL, time.Now)

	return func(c *gin.Context) {
		if !limiters.get(c.ClientIP()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// clientLimiters holds one token bucket per client. Idle clients are swept
// lazily, at most once per ttl.
type clientLimiters struct {
	rps       int
	ttl       time.Duration
	now       func() time.Time
	mu        sync.Mutex
	clients   map[string]*clientLimiter
	lastSweep time.Time
}

func newClientLimiters(rps int, ttl time.Duration, now func() time.Time) *clientLimiters {
	return &clientLimiters{
		rps:       rps,
		ttl:       ttl,
		now:       now,
		clients:   make(map[string]*clientLimiter),
		lastSweep: now(),
	}
}

func (l *clientLimiters) get(ip string) *rate.Limiter {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) >= l.ttl {
		for key, cl := range l.clients {
			if now.Sub(cl.lastSeen) >= l.ttl {
				delete(l.clients, key)
			}
		}
		l.lastSweep = now
	}

	cl, ok := l.clients[ip]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(rate.Limit(l.rps), l.rps)}
		l.clients[ip] = cl
	}
	cl.lastSeen = now
	return cl.limiter
}

func (l *clientLimiters) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}
