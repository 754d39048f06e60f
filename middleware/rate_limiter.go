package middleware

import (
	"fmt"
	"strconv"
	"time"

	"github.com/anjiri1684/skillcoin/logger"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

type RateLimitObserver interface {
	IncRateLimited(route string)
}

// RateLimiter is a fixed-window counter kept in Redis. With no client it
// lets every request through; Redis errors fail open.
type RateLimiter struct {
	client   *redis.Client
	log      *logger.Logger
	observer RateLimitObserver
}

func NewRateLimiter(client *redis.Client, log *logger.Logger, observer RateLimitObserver) *RateLimiter {
	if log == nil {
		log = logger.Nop()
	}
	return &RateLimiter{client: client, log: log, observer: observer}
}

func (rl *RateLimiter) Limit(keySuffix string, limit int, window time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if rl == nil || rl.client == nil {
			return c.Next()
		}
		subject := CallerID(c)
		if subject == "" {
			subject = c.IP()
		}
		key := fmt.Sprintf("rate_limit:%s:%s", keySuffix, subject)
		ctx := c.UserContext()

		// SET NX seeds the window with its expiry, so the counter can never
		// outlive it even if a later step fails.
		var (
			incr   *redis.IntCmd
			ttlCmd *redis.DurationCmd
		)
		_, err := rl.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.SetNX(ctx, key, 0, window)
			incr = pipe.Incr(ctx, key)
			ttlCmd = pipe.TTL(ctx, key)
			return nil
		})
		if err != nil {
			rl.log.Warn("rate limiter unavailable", "key", key, "error", err)
			return c.Next()
		}
		count, ttl := incr.Val(), ttlCmd.Val()
		if ttl < 0 {
			if err := rl.client.Expire(ctx, key, window).Err(); err != nil {
				rl.log.Warn("rate limiter expiry", "key", key, "error", err)
			}
			ttl = window
		}
		if count > int64(limit) {
			if rl.observer != nil {
				rl.observer.IncRateLimited(keySuffix)
			}
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(ttl.Seconds())))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"status":  "error",
				"code":    "resource-exhausted",
				"message": "Too many requests, please slow down.",
			})
		}
		return c.Next()
	}
}
