package middleware

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/osvaldoandrade/agentq/internal/metrics"
	"github.com/osvaldoandrade/agentq/internal/ratelimit"
)

// RateLimitSubmit throttles job submissions per client IP. There is no auth
// layer, so the remote address is the only stable subject available.
func RateLimitSubmit(lim ratelimit.Limiter, bucket ratelimit.Bucket) gin.HandlerFunc {
	return func(c *gin.Context) {
		if lim == nil || !bucket.Enabled() {
			c.Next()
			return
		}

		dec, err := lim.Allow(c.Request.Context(), "submit", c.ClientIP(), bucket)
		if err != nil {
			// Fail open; a limiter fault must not turn into an outage.
			slog.Default().Warn("rate limit check failed", "err", err)
			c.Next()
			return
		}
		if dec.Allowed {
			c.Next()
			return
		}

		retryAfterSeconds := int(dec.RetryAfter.Seconds())
		if retryAfterSeconds <= 0 {
			retryAfterSeconds = 1
		}
		c.Header("Retry-After", strconv.Itoa(retryAfterSeconds))
		metrics.RateLimitHitsTotal.WithLabelValues("submit").Inc()
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error":             "rate limit exceeded",
			"retryAfterSeconds": retryAfterSeconds,
		})
	}
}
