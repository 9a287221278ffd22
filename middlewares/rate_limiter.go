package middlewares

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/birchwood-sourdough/orders/apperr"
	"github.com/birchwood-sourdough/orders/kvstore"
	"github.com/birchwood-sourdough/orders/metrics"
	"github.com/birchwood-sourdough/orders/utils"
)

const kvTimeout = 2 * time.Second

// RateLimiter counts requests per client address in fixed windows. An address that goes
// over the limit is locked out for the lockout period, even once the window rolls over.
type RateLimiter struct {
	name    string
	limit   int64
	window  time.Duration
	lockout time.Duration
	store   kvstore.Store
	metrics *metrics.Metrics
	logger  logrus.FieldLogger
}

type RateLimitConfig struct {
	Name    string
	Limit   int
	Window  time.Duration
	Lockout time.Duration
}

func NewRateLimiter(cfg RateLimitConfig, store kvstore.Store, m *metrics.Metrics, logger logrus.FieldLogger) *RateLimiter {
	if cfg.Limit <= 0 {
		cfg.Limit = 10
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	return &RateLimiter{
		name:    cfg.Name,
		limit:   int64(cfg.Limit),
		window:  cfg.Window,
		lockout: cfg.Lockout,
		store:   store,
		metrics: m,
		logger:  logger.WithField("limiter", cfg.Name),
	}
}

// RateLimit lets requests through when the counter store is unavailable.
func (rl *RateLimiter) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		ctx, cancel := context.WithTimeout(c.Request.Context(), kvTimeout)
		allowed, retryAfter, err := rl.allow(ctx, ip)
		cancel()
		if err != nil {
			rl.logger.WithError(err).Warn("Rate limit store unavailable")
			c.Next()
			return
		}
		if !allowed {
			rl.metrics.RateLimited(rl.name)
			rl.logger.WithField("ip", ip).Warn("Rate limit exceeded")
			c.Header("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
			utils.AbortWithError(c, apperr.Auth(utils.CodeRateLimited, "Too many requests, please try again later"))
			return
		}
		c.Next()
	}
}

func (rl *RateLimiter) allow(ctx context.Context, ip string) (bool, time.Duration, error) {
	lockKey := "lockout:" + rl.name + ":" + ip
	if rl.lockout > 0 {
		_, locked, err := rl.store.Get(ctx, lockKey)
		if err != nil {
			return false, 0, err
		}
		if locked {
			return false, rl.lockout, nil
		}
	}

	n, err := rl.store.Incr(ctx, "rate:"+rl.name+":"+ip, rl.window)
	if err != nil {
		return false, 0, err
	}
	if n <= rl.limit {
		return true, 0, nil
	}
	if rl.lockout > 0 {
		if err := rl.store.Set(ctx, lockKey, "1", rl.lockout); err != nil {
			return false, 0, err
		}
		return false, rl.lockout, nil
	}
	return false, rl.window, nil
}

// Throttle caps the rate of a route across all clients.
func Throttle(limiter *rate.Limiter, name string, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow() {
			m.RateLimited(name)
			utils.AbortWithError(c, apperr.Auth(utils.CodeRateLimited, "The shop is busy, please try again shortly"))
			return
		}
		c.Next()
	}
}
