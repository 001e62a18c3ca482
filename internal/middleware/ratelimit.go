package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/fluentz/placement-backend/internal/response"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimiter implements a per-client token bucket rate limiter.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a RateLimiter allowing n requests per interval
// (e.g., 30 per minute), with bursts up to n. The cleanup loop stops when ctx
// is cancelled.
func NewRateLimiter(ctx context.Context, n int, interval time.Duration) *RateLimiter {
	if n <= 0 {
		n = 1
	}
	rl := &RateLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Limit(float64(n) / interval.Seconds()),
		burst:    n,
	}

	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rl.cleanup()
			}
		}
	}()

	return rl
}

// Middleware returns a Gin middleware that rate-limits requests. Authenticated
// learners are keyed by id, everyone else by client IP.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		lim := rl.limiterFor(clientKey(c))

		res := lim.Reserve()
		if delay := res.Delay(); delay > 0 {
			res.Cancel()
			response.AbortFailRetryable(c, http.StatusTooManyRequests, response.ErrRateLimitExceeded, delay)
			return
		}

		c.Next()
	}
}

func (rl *RateLimiter) limiterFor(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, exists := rl.visitors[key]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[key] = v
	}
	v.lastSeen = time.Now()
	return v.limiter
}

func clientKey(c *gin.Context) string {
	if id, ok := GetLearnerID(c); ok {
		return "learner:" + strconv.FormatInt(id, 10)
	}
	return "ip:" + c.ClientIP()
}

func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, v := range rl.visitors {
		if time.Since(v.lastSeen) > 3*time.Minute {
			delete(rl.visitors, key)
		}
	}
}
