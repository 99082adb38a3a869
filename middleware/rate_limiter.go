// api/middleware/rate_limiter.go

package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/dev-mohitbeniwal/warden/api/db"
	logger "github.com/dev-mohitbeniwal/warden/api/logging"
)

// RateLimiter limits requests per client IP using the redis sliding window
// when redis is available, falling back to in-process token buckets otherwise.
func RateLimiter(limit int, per time.Duration, useRedis bool) gin.HandlerFunc {
	local := newLocalLimiter(limit, per)

	return func(c *gin.Context) {
		key := c.ClientIP()

		var allowed bool
		if useRedis {
			var err error
			allowed, err = db.RateLimit(c, key, limit, per)
			if err != nil {
				logger.Error("Rate limiting failed", zap.Error(err), zap.String("ip", key))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Rate limiting failed"})
				c.Abort()
				return
			}
		} else {
			allowed = local.allow(key)
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Header("X-RateLimit-Duration", per.String())

		if !allowed {
			logger.Warn("Rate limit exceeded",
				zap.String("ip", key),
				zap.Int("limit", limit),
				zap.Duration("per", per))
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			c.Abort()
			return
		}

		c.Next()
	}
}

type localLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func newLocalLimiter(limit int, per time.Duration) *localLimiter {
	return &localLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Every(per / time.Duration(limit)),
		burst:    limit,
	}
}

func (l *localLimiter) allow(key string) bool {
	l.mu.Lock()
	limiter, exists := l.limiters[key]
	if !exists {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters[key] = limiter
	}
	l.mu.Unlock()
	return limiter.Allow()
}
