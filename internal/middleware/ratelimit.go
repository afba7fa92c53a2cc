package middleware

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/AdityaGahukar/PingWave/pkg/log"
	"github.com/AdityaGahukar/PingWave/pkg/response"
)

// RateLimiter implements per-client-IP sliding window rate limiting
// backed by redis sorted sets. It fails open: when redis is
// unreachable the request is let through rather than the API taken
// down with it.
type RateLimiter struct {
	client   *redis.Client
	requests int
	window   time.Duration
}

// NewRateLimiter creates a rate limiter allowing `requests` requests
// per `window` per client IP.
func NewRateLimiter(client *redis.Client, requests int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client:   client,
		requests: requests,
		window:   window,
	}
}

// Middleware returns the gin middleware enforcing the limit.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		key := fmt.Sprintf("ratelimit:%s", c.ClientIP())
		now := time.Now()
		windowStart := now.Add(-rl.window)

		pipe := rl.client.Pipeline()
		pipe.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%d", windowStart.UnixNano()))
		countCmd := pipe.ZCard(ctx, key)
		pipe.ZAdd(ctx, key, redis.Z{
			Score:  float64(now.UnixNano()),
			Member: fmt.Sprintf("%d-%s", now.UnixNano(), uuid.New().String()),
		})
		pipe.Expire(ctx, key, rl.window)

		if _, err := pipe.Exec(ctx); err != nil {
			l := log.Ctx(ctx)
			l.Warn().Err(err).Msg("rate limiter unavailable, failing open")
			c.Next()
			return
		}

		if countCmd.Val() >= int64(rl.requests) {
			response.TooManyRequests(c, "Rate limit exceeded. Please try again later.")
			c.Abort()
			return
		}

		c.Next()
	}
}
