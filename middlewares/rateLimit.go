package middlewares

import (
	"fmt"
	"net/http"
	"time"

	"github.com/ChrissHeIs/electricco-vehicle-image-manager/config"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const rateLimitPrefix = "ratelimit:"

type RateLimiter struct {
	client func() *redis.Client
	limit  int64
	window time.Duration
	logger *logrus.Logger
}

// NewRateLimiter counts requests per client IP in fixed windows. client is
// called per request so the limiter starts enforcing once redis connects.
func NewRateLimiter(client func() *redis.Client, limit int64, window time.Duration, logger *logrus.Logger) *RateLimiter {
	return &RateLimiter{
		client: client,
		limit:  limit,
		window: window,
		logger: logger,
	}
}

func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		client := rl.client()
		if client == nil {
			c.Next()
			return
		}

		count, err := config.IncrementWindowCounter(c.Request.Context(), client, rateLimitPrefix+c.ClientIP(), rl.window)
		if err != nil {
			// Fail open: a redis outage must not take the API down.
			config.LogError(rl.logger, "middlewares", "RateLimiter", "IncrementWindowCounter", c.ClientIP(), err)
			c.Next()
			return
		}
		if count > rl.limit {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": fmt.Sprintf("Rate limit exceeded. Try again in %d seconds", int(rl.window.Seconds())),
			})
			return
		}
		c.Next()
	}
}
