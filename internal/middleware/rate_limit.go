package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/saloncore/booking-core/pkg/logger"
)

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
	KeyFunc  func(*gin.Context) string
	SkipFunc func(*gin.Context) bool
}

// RateLimiter implements a sliding-window limiter backed by redis sorted
// sets, so it stays correct across multiple replicas of this service.
type RateLimiter struct {
	redis  *redis.Client
	config RateLimitConfig
	logger *logger.Logger
}

func NewRateLimiter(redisClient *redis.Client, config RateLimitConfig, log *logger.Logger) *RateLimiter {
	if config.KeyFunc == nil {
		config.KeyFunc = func(c *gin.Context) string { return c.ClientIP() }
	}
	if config.SkipFunc == nil {
		config.SkipFunc = func(c *gin.Context) bool { return false }
	}
	return &RateLimiter{redis: redisClient, config: config, logger: log}
}

// Middleware returns the gin handler enforcing the configured limit.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.config.SkipFunc(c) {
			c.Next()
			return
		}

		key := fmt.Sprintf("rate_limit:%s", rl.config.KeyFunc(c))
		allowed, remaining, resetTime, err := rl.checkLimit(c.Request.Context(), key)
		if err != nil {
			rl.logger.Error("rate limit check failed", "error", err, "key", key)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.config.Requests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(resetTime.Unix(), 10))

		if !allowed {
			rl.logger.Warn("rate limit exceeded", "key", key, "path", c.Request.URL.Path)
			c.JSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "RATE_LIMIT_EXCEEDED",
					"message": "too many requests",
				},
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

func (rl *RateLimiter) checkLimit(ctx context.Context, key string) (allowed bool, remaining int, resetTime time.Time, err error) {
	now := time.Now()
	window := rl.config.Window

	pipe := rl.redis.Pipeline()
	expiredBefore := now.Add(-window).UnixNano()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(expiredBefore, 10))
	pipe.ZCard(ctx, key)
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixNano()), Member: fmt.Sprintf("%d", now.UnixNano())})
	pipe.Expire(ctx, key, window+time.Minute)

	results, err := pipe.Exec(ctx)
	if err != nil {
		return false, 0, time.Time{}, err
	}

	currentCount := results[1].(*redis.IntCmd).Val()
	remaining = rl.config.Requests - int(currentCount) - 1
	if remaining < 0 {
		remaining = 0
	}
	resetTime = now.Add(window)
	allowed = currentCount < int64(rl.config.Requests)
	return allowed, remaining, resetTime, nil
}

// IPBasedRateLimit creates a rate limiter keyed by client IP, used for the
// public read endpoints (catalog, availability, quote).
func IPBasedRateLimit(redisClient *redis.Client, requests int, window time.Duration, log *logger.Logger) gin.HandlerFunc {
	limiter := NewRateLimiter(redisClient, RateLimitConfig{Requests: requests, Window: window}, log)
	return limiter.Middleware()
}

// ClientBasedRateLimit creates a rate limiter keyed by the caller's client
// id when present, falling back to IP, used on the write endpoints (Hold,
// Finalize, Reschedule, Cancel, Rate) to stop a single abusive client from
// exhausting the slot-holding budget for a staff member.
func ClientBasedRateLimit(redisClient *redis.Client, requests int, window time.Duration, log *logger.Logger) gin.HandlerFunc {
	config := RateLimitConfig{
		Requests: requests,
		Window:   window,
		KeyFunc: func(c *gin.Context) string {
			if clientID, exists := c.Get(ContextKeyClientID); exists {
				return fmt.Sprintf("client:%s", clientID)
			}
			return fmt.Sprintf("ip:%s", c.ClientIP())
		},
	}
	limiter := NewRateLimiter(redisClient, config, log)
	return limiter.Middleware()
}
