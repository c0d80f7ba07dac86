package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/mockmate/internal/config"
	"github.com/stemsi/mockmate/internal/response"
)

// RateLimiter is a fixed-window per-IP limiter backed by Redis, so every
// server instance shares the same counters.
type RateLimiter struct {
	rdb    *redis.Client
	scope  string
	limit  int
	window time.Duration
	now    func() time.Time
	log    zerolog.Logger
}

// NewRateLimiter allows limit requests per window for each client IP.
func NewRateLimiter(rdb *redis.Client, scope string, limit int, window time.Duration, log zerolog.Logger) *RateLimiter {
	if window < time.Second {
		window = time.Second
	}
	return &RateLimiter{
		rdb:    rdb,
		scope:  scope,
		limit:  limit,
		window: window,
		now:    time.Now,
		log:    log.With().Str("component", "rate_limiter").Str("scope", scope).Logger(),
	}
}

// Middleware rejects requests beyond the limit with 429. When Redis is
// unreachable requests are let through.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.limit <= 0 {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		secs := int64(rl.window / time.Second)
		bucket := rl.now().Unix() / secs
		key := config.CacheKey.RateLimitKey(rl.scope, c.ClientIP(), bucket)

		pipe := rl.rdb.TxPipeline()
		incr := pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, rl.window)
		if _, err := pipe.Exec(ctx); err != nil {
			rl.log.Warn().Err(err).Msg("Rate limit check failed, allowing request")
			c.Next()
			return
		}

		count := int(incr.Val())
		remaining := rl.limit - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if count > rl.limit {
			retryAfter := (bucket+1)*secs - rl.now().Unix()
			c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
			response.AbortFail(c, http.StatusTooManyRequests, response.ErrRateLimitExceeded)
			return
		}
		c.Next()
	}
}
