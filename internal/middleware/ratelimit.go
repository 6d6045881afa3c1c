package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	appErrors "github.com/charlesng35/weddingdesk/pkg/errors"
	"github.com/charlesng35/weddingdesk/pkg/response"
)

var errTooManyRequests = appErrors.New("RATE_LIMITED", "Too many requests, try again later", http.StatusTooManyRequests)

// RateLimiter counts requests per (client IP, route) in fixed windows. It is
// process-local.
type RateLimiter struct {
	max    int
	window time.Duration
	now    func() time.Time

	mu   sync.Mutex
	data map[string]*rateCounter
}

type rateCounter struct {
	count     int
	windowEnd time.Time
}

// NewRateLimiter constructs a limiter allowing maxRequests per window.
func NewRateLimiter(maxRequests int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		max:    maxRequests,
		window: window,
		now:    time.Now,
		data:   make(map[string]*rateCounter),
	}
}

// Handler returns the gin middleware. A non-positive limit disables it.
func (l *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if l.max <= 0 || l.window <= 0 {
			c.Next()
			return
		}

		count, resetIn := l.increment(c.ClientIP() + "|" + c.FullPath())
		remaining := l.max - count
		if remaining < 0 {
			remaining = 0
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(l.max))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.Itoa(int(resetIn.Seconds())))

		if count > l.max {
			c.Header("Retry-After", strconv.Itoa(int(resetIn.Seconds())+1))
			response.Error(c, errTooManyRequests)
			c.Abort()
			return
		}
		c.Next()
	}
}

func (l *RateLimiter) increment(key string) (int, time.Duration) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	// Expired windows are dropped lazily instead of by a background ticker.
	if len(l.data) > 1024 {
		for k, v := range l.data {
			if now.After(v.windowEnd) {
				delete(l.data, k)
			}
		}
	}

	counter, ok := l.data[key]
	if !ok || now.After(counter.windowEnd) {
		counter = &rateCounter{windowEnd: now.Add(l.window)}
		l.data[key] = counter
	}
	counter.count++
	return counter.count, counter.windowEnd.Sub(now)
}
