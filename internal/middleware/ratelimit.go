package middleware

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"admin-auth/internal/metrics"
	"admin-auth/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// RateLimitConfig параметри лімітера
type RateLimitConfig struct {
	RequestsPerMinute int
	Burst             int
}

// RateLimiter тримає окремий token bucket на кожну адресу клієнта
type RateLimiter struct {
	cfg         RateLimitConfig
	limiters    sync.Map // map[string]*rate.Limiter
	mutex       sync.Mutex
	lastCleanup time.Time
}

// NewRateLimiter створює новий лімітер
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 60
	}
	if cfg.Burst <= 0 {
		cfg.Burst = cfg.RequestsPerMinute
	}
	return &RateLimiter{cfg: cfg, lastCleanup: time.Now()}
}

// Middleware повертає gin middleware, що обмежує запити за c.ClientIP()
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		limiter := rl.limiterFor(key)

		if !limiter.Allow() {
			reservation := limiter.Reserve()
			delay := reservation.Delay()
			reservation.Cancel()

			retryAfter := max(int(delay.Seconds()), 1)
			metrics.RateLimited.WithLabelValues(c.FullPath()).Inc()
			logrus.WithFields(logrus.Fields{
				"client_ip":   key,
				"path":        c.Request.URL.Path,
				"retry_after": retryAfter,
			}).Warn("Rate limit exceeded")

			c.Header("Retry-After", fmt.Sprintf("%d", retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, models.ErrorResponse{
				Error:            "rate_limit_exceeded",
				ErrorDescription: "Too many requests. Please try again later.",
			})
			return
		}

		c.Next()
	}
}

func (rl *RateLimiter) limiterFor(key string) *rate.Limiter {
	if limiter, ok := rl.limiters.Load(key); ok {
		return limiter.(*rate.Limiter)
	}

	perSecond := rate.Limit(float64(rl.cfg.RequestsPerMinute) / 60)
	actual, _ := rl.limiters.LoadOrStore(key, rate.NewLimiter(perSecond, rl.cfg.Burst))
	rl.maybeCleanup()
	return actual.(*rate.Limiter)
}

// maybeCleanup прибирає лімітери з повним бакетом, не частіше ніж раз на 5 хвилин
func (rl *RateLimiter) maybeCleanup() {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	if time.Since(rl.lastCleanup) < 5*time.Minute {
		return
	}
	rl.lastCleanup = time.Now()

	rl.limiters.Range(func(key, value any) bool {
		if value.(*rate.Limiter).Tokens() >= float64(rl.cfg.Burst) {
			rl.limiters.Delete(key)
		}
		return true
	})
}
