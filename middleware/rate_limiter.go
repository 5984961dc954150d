package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	// maxTrackedIPs caps how many client limiters are held at once.
	maxTrackedIPs = 10000
	// idleEviction is how long an IP may stay silent before its limiter
	// can be reclaimed.
	idleEviction = 30 * time.Minute
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type RateLimiter struct {
	ips        map[string]*clientLimiter
	mu         *sync.RWMutex
	rate       rate.Limit
	burst      int
	maxTracked int
}

func NewRateLimiter(r rate.Limit, b int) *RateLimiter {
	return &RateLimiter{
		ips:        make(map[string]*clientLimiter),
		mu:         &sync.RWMutex{},
		rate:       r,
		burst:      b,
		maxTracked: maxTrackedIPs,
	}
}

func (rl *RateLimiter) GetLimiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if cl, exists := rl.ips[ip]; exists {
		cl.lastSeen = now
		return cl.limiter
	}

	if len(rl.ips) >= rl.maxTracked {
		rl.evictIdle(now)
	}

	cl := &clientLimiter{limiter: rate.NewLimiter(rl.rate, rl.burst), lastSeen: now}
	rl.ips[ip] = cl
	return cl.limiter
}

// evictIdle drops limiters for IPs not seen within the eviction window.
// Caller holds the write lock.
func (rl *RateLimiter) evictIdle(now time.Time) {
	for ip, cl := range rl.ips {
		if now.Sub(cl.lastSeen) > idleEviction {
			delete(rl.ips, ip)
		}
	}
}

// RateLimitMiddleware allows 100 requests per 15 minutes per client IP.
func RateLimitMiddleware() gin.HandlerFunc {
	rl := NewRateLimiter(rate.Every(15*time.Minute/100), 20)

	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !rl.GetLimiter(ip).Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			c.Abort()
			return
		}
		c.Next()
	}
}
