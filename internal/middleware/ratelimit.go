package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type clientLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter limits requests per client IP with a token bucket each.
type RateLimiter struct {
	limit  rate.Limit
	burst  int
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	limiters map[string]*clientLimiter
}

// NewRateLimiter allows limit requests per second per client, with bursts of
// burst. Clients idle for longer than ttl are forgotten.
func NewRateLimiter(limit float64, burst int, ttl time.Duration, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimiter{
		limit:    rate.Limit(limit),
		burst:    burst,
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
		limiters: make(map[string]*clientLimiter),
	}
}

// Middleware answers 429 with Retry-After once a client exceeds its bucket.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !rl.limiterFor(ip).Allow() {
			retryAfter := int(math.Ceil(1.0 / float64(rl.limit)))
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{Error: "Too many requests. Please try again later."})
			rl.logger.Warn("Rate limit exceeded", zap.String("client_ip", ip), zap.String("path", c.Request.URL.Path))
			return
		}
		c.Next()
	}
}

// Len returns the number of tracked clients.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

func (rl *RateLimiter) limiterFor(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.evictLocked(now)
	cl, ok := rl.limiters[key]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.limiters[key] = cl
	}
	cl.lastAccess = now
	return cl.limiter
}

// evictLocked drops clients idle for longer than ttl.
func (rl *RateLimiter) evictLocked(now time.Time) {
	if rl.ttl <= 0 {
		return
	}
	for key, cl := range rl.limiters {
		if now.Sub(cl.lastAccess) > rl.ttl {
			delete(rl.limiters, key)
		}
	}
}
