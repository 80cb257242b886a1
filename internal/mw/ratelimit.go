package mw

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

const (
	visitorTTL     = 10 * time.Minute
	visitorCleanup = time.Minute
)

// IPRateLimiter stores a rate limiter for each IP address. Limiters of
// clients that stay quiet for visitorTTL are evicted.
type IPRateLimiter struct {
	visitors *cache.Cache
	mu       sync.Mutex
	r        rate.Limit
	b        int
}

// NewIPRateLimiter creates a new IPRateLimiter.
func NewIPRateLimiter(r rate.Limit, b int) *IPRateLimiter {
	return &IPRateLimiter{
		visitors: cache.New(visitorTTL, visitorCleanup),
		r:        r,
		b:        b,
	}
}

// GetLimiter returns the rate limiter for an IP address, creating it on
// first use and extending its lifetime on every call.
func (i *IPRateLimiter) GetLimiter(ip string) *rate.Limiter {
	i.mu.Lock()
	defer i.mu.Unlock()

	var limiter *rate.Limiter
	if v, found := i.visitors.Get(ip); found {
		limiter = v.(*rate.Limiter)
	} else {
		limiter = rate.NewLimiter(i.r, i.b)
	}
	i.visitors.SetDefault(ip, limiter)
	return limiter
}

// Visitors is the number of tracked addresses.
func (i *IPRateLimiter) Visitors() int {
	return i.visitors.ItemCount()
}

// RateLimiter is a middleware for IP-based rate limiting.
func RateLimiter(r rate.Limit, b int) gin.HandlerFunc {
	return NewIPRateLimiter(r, b).Middleware()
}

// Middleware rejects requests over the per-IP budget with 429.
func (i *IPRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !i.GetLimiter(c.ClientIP()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "too many requests",
				"code":  "RATE_LIMITED",
			})
			return
		}
		c.Next()
	}
}
