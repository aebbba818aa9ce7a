package middleware

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/osvaldoandrade/zumo/internal/metrics"
	"github.com/osvaldoandrade/zumo/internal/ratelimit"
	"github.com/osvaldoandrade/zumo/pkg/config"
)

func RateLimitIdentity(lim ratelimit.Limiter, cfg *config.Config) gin.HandlerFunc {
	return rateLimitPrincipal(lim, "identity", "fetch", cfg.RateLimit.Identity)
}

// rateLimitPrincipal keys buckets by principal id, so it must run after
// Authentication.
func rateLimitPrincipal(lim ratelimit.Limiter, scope string, operation string, bcfg config.RateLimitBucketConfig) gin.HandlerFunc {
	bucket := ratelimit.Bucket{RequestsPerMinute: bcfg.RequestsPerMinute, BurstSize: bcfg.BurstSize}
	return func(c *gin.Context) {
		if lim == nil || !bucket.Enabled() {
			c.Next()
			return
		}

		p, ok := GetPrincipal(c)
		if !ok || p.ID == "" {
			// RequireAuthenticated rejects these; nothing to key a bucket on.
			c.Next()
			return
		}

		dec, err := lim.Allow(c.Request.Context(), scope, p.ID, bucket)
		if err != nil {
			// Fail open to avoid turning Redis hiccups into outages.
			slog.Default().Warn("rate limit check failed", "scope", scope, "op", operation, "err", err)
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
		metrics.RateLimitHitsTotal.WithLabelValues(scope, operation).Inc()
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error":             "rate limit exceeded",
			"scope":             scope,
			"operation":         operation,
			"retryAfterSeconds": retryAfterSeconds,
		})
	}
}
