package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/EL-KENDEH-TEAM/EK-SMS/pkg/errors"
	"github.com/EL-KENDEH-TEAM/EK-SMS/pkg/logger"
	"github.com/EL-KENDEH-TEAM/EK-SMS/pkg/metrics"
	"github.com/EL-KENDEH-TEAM/EK-SMS/pkg/response"
)

// RateRule describes one fixed-window limit.
type RateRule struct {
	// Scope names the limit in keys, metrics and logs, e.g. "resend".
	Scope  string
	Limit  int
	Window time.Duration
	// Key derives the limited subject from the request. An empty key skips the limit.
	Key func(c *gin.Context) string
}

// ClientKey limits per client IP.
func ClientKey(c *gin.Context) string {
	return c.ClientIP()
}

// ClientParamKey limits per client IP and route parameter.
func ClientParamKey(param string) func(c *gin.Context) string {
	return func(c *gin.Context) string {
		return c.ClientIP() + "|" + c.Param(param)
	}
}

// ReviewerKey limits per authenticated reviewer. It must run after RequireReviewer.
func ReviewerKey(c *gin.Context) string {
	return Reviewer(c)
}

// RateLimit enforces rule against store. Store failures let the request through.
func RateLimit(store RateStore, rule RateRule) gin.HandlerFunc {
	keyFn := rule.Key
	if keyFn == nil {
		keyFn = ClientKey
	}

	return func(c *gin.Context) {
		if store == nil || rule.Limit <= 0 || rule.Window <= 0 {
			c.Next()
			return
		}

		subject := keyFn(c)
		if subject == "" {
			c.Next()
			return
		}

		count, ttl, err := store.Increment(c.Request.Context(), "ratelimit:"+rule.Scope+":"+subject, rule.Window)
		if err != nil {
			logger.WithModule("ratelimit").Warn("rate limit store unavailable",
				zap.String("scope", rule.Scope),
				zap.Error(err),
			)
			c.Next()
			return
		}

		resetIn := int(ttl.Round(time.Second).Seconds())
		c.Header("X-RateLimit-Limit", strconv.Itoa(rule.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(max(0, rule.Limit-count)))
		c.Header("X-RateLimit-Reset", strconv.Itoa(resetIn))

		if count > rule.Limit {
			metrics.RateLimited.WithLabelValues(rule.Scope).Inc()
			c.Header("Retry-After", strconv.Itoa(max(1, resetIn)))
			response.Error(c, errors.ErrRateLimit)
			c.Abort()
			return
		}

		c.Next()
	}
}
