package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/uassett/Epsydev/pkg/logger"
	"github.com/uassett/Epsydev/pkg/ratelimit"
)

// RateLimitConfig configures the distributed fixed-window limiter
type RateLimitConfig struct {
	Limiter *ratelimit.RedisRateLimiter
	Limit   int
	Window  time.Duration
	KeyFunc func(*gin.Context) string
}

// DefaultKeyFunc uses the player ID when authenticated, otherwise the IP
func DefaultKeyFunc(c *gin.Context) string {
	if playerID, exists := c.Get("playerId"); exists {
		return fmt.Sprintf("player:%v", playerID)
	}
	return fmt.Sprintf("ip:%s", c.ClientIP())
}

// IPKeyFunc uses only the IP address (for unauthenticated endpoints)
func IPKeyFunc(c *gin.Context) string {
	return fmt.Sprintf("ip:%s", c.ClientIP())
}

// RateLimit enforces a request budget per key per window. Redis failures let
// the request through.
func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = DefaultKeyFunc
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 60
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}

	return func(c *gin.Context) {
		key := cfg.KeyFunc(c)

		allowed, err := cfg.Limiter.Allow(c.Request.Context(), key, cfg.Limit, cfg.Window)
		if err != nil {
			// fail open on Redis errors
			logger.Warn("Rate limit check failed", "key", key, "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(cfg.Limit))

		if !allowed {
			c.Header("Retry-After", strconv.Itoa(int(cfg.Window.Seconds())))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": fmt.Sprintf("Rate limit exceeded: %d per %v", cfg.Limit, cfg.Window),
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
