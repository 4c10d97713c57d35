package middleware

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/EL-KENDEH-TEAM/EK-SMS/pkg/errors"
	"github.com/EL-KENDEH-TEAM/EK-SMS/pkg/metrics"
	"github.com/EL-KENDEH-TEAM/EK-SMS/pkg/response"
)

const throttleIdleTTL = 10 * time.Minute

// Throttle smooths bursts from a single client with a token bucket per IP.
type Throttle struct {
	mu        sync.Mutex
	limiters  map[string]*throttleEntry
	limit     rate.Limit
	burst     int
	now       func() time.Time
	lastSweep time.Time
}

type throttleEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewThrottle admits rps requests per second per client with the given burst.
func NewThrottle(rps float64, burst int) *Throttle {
	if burst <= 0 {
		burst = 1
	}
	return &Throttle{
		limiters: make(map[string]*throttleEntry),
		limit:    rate.Limit(rps),
		burst:    burst,
		now:      time.Now,
	}
}

// Allow reports whether key may proceed now.
func (t *Throttle) Allow(key string) bool {
	now := t.now()

	t.mu.Lock()
	if now.Sub(t.lastSweep) >= throttleIdleTTL {
		for k, entry := range t.limiters {
			if now.Sub(entry.lastSeen) >= throttleIdleTTL {
				delete(t.limiters, k)
			}
		}
		t.lastSweep = now
	}
	entry, ok := t.limiters[key]
	if !ok {
		entry = &throttleEntry{limiter: rate.NewLimiter(t.limit, t.burst)}
		t.limiters[key] = entry
	}
	entry.lastSeen = now
	t.mu.Unlock()

	return entry.limiter.AllowN(now, 1)
}

// Handler returns the gin middleware. A non-positive rate disables throttling.
func (t *Throttle) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if t == nil || t.limit <= 0 {
			c.Next()
			return
		}
		if !t.Allow(c.ClientIP()) {
			metrics.RateLimited.WithLabelValues("throttle").Inc()
			c.Header("Retry-After", "1")
			response.Error(c, errors.ErrRateLimit)
			c.Abort()
			return
		}
		c.Next()
	}
}
