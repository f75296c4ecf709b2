package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/DigiMedic/PillSee/internal/handler"
)

// RedisRateLimiter is a fixed-window counter shared across instances.
// Counting is per client IP and per route scope.
type RedisRateLimiter struct {
	client *redis.Client
	scope  string
	limit  int
	window time.Duration
}

func NewRedisRateLimiter(client *redis.Client, scope string, perMinute int) *RedisRateLimiter {
	return &RedisRateLimiter{
		client: client,
		scope:  scope,
		limit:  perMinute,
		window: time.Minute,
	}
}

func (rl *RedisRateLimiter) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := fmt.Sprintf("ratelimit:%s:%s:%d",
			rl.scope, c.ClientIP(), time.Now().Unix()/int64(rl.window.Seconds()))

		ctx := c.Request.Context()
		pipe := rl.client.TxPipeline()
		incr := pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, rl.window)
		if _, err := pipe.Exec(ctx); err != nil {
			// Fail open so a Redis outage does not take the API down.
			log.Warn().Err(err).Str("scope", rl.scope).Msg("rate limit check failed")
			c.Next()
			return
		}

		if incr.Val() > int64(rl.limit) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests,
				handler.NewErrorResponse("Překročen limit požadavků, zkuste to později"))
			return
		}
		c.Next()
	}
}
