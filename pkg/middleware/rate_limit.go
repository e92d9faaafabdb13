package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/zewo/opsdash/pkg/logger"
	"github.com/zewo/opsdash/pkg/metrics"
	"github.com/zewo/opsdash/pkg/ratelimit"
)

// requestKey prefers the authenticated subject from `claims`, falling back to the client IP.
func requestKey(c *gin.Context) string {
	if v, ok := c.Get("claims"); ok {
		if cm, ok2 := v.(map[string]interface{}); ok2 {
			if sub, ok3 := cm["sub"].(string); ok3 && sub != "" {
				return "sub:" + sub
			}
		}
	}
	ip := c.ClientIP()
	if ip == "" {
		ip = "unknown"
	}
	return "ip:" + ip
}

// RateLimit enforces l per request key. retryAfter is reported on rejection.
func RateLimit(l ratelimit.Limiter, retryAfter time.Duration) gin.HandlerFunc {
	secs := int(retryAfter.Seconds())
	if secs < 1 {
		secs = 1
	}
	return func(c *gin.Context) {
		ok, err := l.Allow(c.Request.Context(), requestKey(c))
		if err != nil {
			logger.Errorf("rate limit check failed: %v", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Rate limit check failed"})
			return
		}
		if !ok {
			c.Header("Retry-After", fmt.Sprintf("%d", secs))
			metrics.RateLimitRejected.WithLabelValues(l.Name()).Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			return
		}
		metrics.RateLimitAllowed.WithLabelValues(l.Name()).Inc()
		c.Next()
	}
}

// RateLimitMiddleware is an in-memory token bucket: rps events per second, burst tokens.
func RateLimitMiddleware(rps float64, burst int) gin.HandlerFunc {
	return RateLimit(ratelimit.NewMemory(rps, burst), time.Second)
}

// RedisRateLimitMiddleware is a fixed-window limiter shared through Redis. A nil client
// falls back to the in-memory limiter.
func RedisRateLimitMiddleware(client *redis.Client, rps float64, burst int, window time.Duration) gin.HandlerFunc {
	if client == nil {
		return RateLimitMiddleware(rps, burst)
	}
	l := ratelimit.NewRedis(client, "rl:", rps, burst, window)
	return RateLimit(l, l.Window())
}
