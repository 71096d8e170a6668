package http

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimiterConfig bounds how many requests a client IP may make per window.
type RateLimiterConfig struct {
	Requests        int
	Window          time.Duration
	CleanupInterval time.Duration
}

// DefaultRateLimiterConfig allows 100 requests per 15 minutes per IP.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		Requests:        100,
		Window:          15 * time.Minute,
		CleanupInterval: 5 * time.Minute,
	}
}

type clientLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter keeps one token bucket per client IP.
type RateLimiter struct {
	config RateLimiterConfig
	every  rate.Limit

	mu      sync.Mutex
	clients map[string]*clientLimiter

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewRateLimiter starts a background loop that forgets idle clients; call Stop
// to end it.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.Requests <= 0 || config.Window <= 0 {
		config = DefaultRateLimiterConfig()
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = config.Window
	}
	rl := &RateLimiter{
		config:  config,
		every:   rate.Every(config.Window / time.Duration(config.Requests)),
		clients: make(map[string]*clientLimiter),
		stopCh:  make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// Middleware rejects requests over the limit with 429 and a Retry-After hint.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		now := time.Now()
		res := rl.limiterFor(c.ClientIP(), now).ReserveN(now, 1)
		if !res.OK() || res.DelayFrom(now) > 0 {
			delay := rl.config.Window
			if res.OK() {
				delay = res.DelayFrom(now)
				res.CancelAt(now)
			}
			retryAfter := int(math.Ceil(delay.Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			respondError(c, http.StatusTooManyRequests, codeRateLimited,
				"too many requests from this IP, try again later")
			return
		}

		c.Next()
	}
}

// Clients reports how many client IPs are tracked.
func (rl *RateLimiter) Clients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

func (rl *RateLimiter) limiterFor(ip string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cl, ok := rl.clients[ip]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(rl.every, rl.config.Requests)}
		rl.clients[ip] = cl
	}
	cl.lastAccess = now
	return cl.limiter
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			rl.cleanup(now)
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup drops clients idle for a full window; their buckets are full again
// by then so forgetting them changes nothing.
func (rl *RateLimiter) cleanup(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for ip, cl := range rl.clients {
		if now.Sub(cl.lastAccess) > rl.config.Window {
			delete(rl.clients, ip)
		}
	}
}
