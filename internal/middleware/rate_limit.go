package middleware

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"vidtube/internal/apperror"
	"vidtube/internal/response"
)

// RateLimiter counts requests per client IP and route in fixed redis windows.
// A redis outage lets requests through.
type RateLimiter struct {
	client  redis.Cmdable
	limit   int
	window  time.Duration
	prefix  string
	timeout time.Duration
	metrics *Metrics
	log     zerolog.Logger
}

func NewRateLimiter(client redis.Cmdable, limit int, window time.Duration, metrics *Metrics, log zerolog.Logger) *RateLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		client:  client,
		limit:   limit,
		window:  window,
		prefix:  "vidtube:ratelimit:",
		timeout: 250 * time.Millisecond,
		metrics: metrics,
		log:     log,
	}
}

func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.limit <= 0 {
			c.Next()
			return
		}

		route := c.FullPath()
		count, ttl, ok := rl.hit(c.Request.Context(), route+":"+c.ClientIP())
		if !ok {
			c.Next()
			return
		}

		remaining := rl.limit - int(count)
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if int(count) > rl.limit {
			c.Header("Retry-After", strconv.Itoa(int(ttl.Seconds())+1))
			rl.metrics.recordRateLimitHit(route)
			response.Error(c, rl.log, apperror.TooManyRequests("too many requests, try again later"))
			return
		}

		c.Next()
	}
}

func (rl *RateLimiter) hit(ctx context.Context, key string) (int64, time.Duration, bool) {
	ctx, cancel := context.WithTimeout(ctx, rl.timeout)
	defer cancel()

	redisKey := rl.prefix + key
	count, err := rl.client.Incr(ctx, redisKey).Result()
	if err != nil {
		rl.log.Warn().Err(err).Msg("rate limiter incr failed")
		return 0, 0, false
	}
	if count == 1 {
		if err := rl.client.Expire(ctx, redisKey, rl.window).Err(); err != nil {
			rl.log.Warn().Err(err).Msg("rate limiter expire failed")
		}
	}
	ttl, err := rl.client.TTL(ctx, redisKey).Result()
	if err != nil || ttl <= 0 {
		ttl = rl.window
	}
	return count, ttl, true
}
