package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/FACorreiaa/citcs-portal/internal/app/renderer"
	"github.com/FACorreiaa/citcs-portal/internal/app/views"
)

// RateLimiter allows each client a fixed number of requests per sliding window.
type RateLimiter struct {
	clients     *gocache.Cache
	logger      *zap.Logger
	maxRequests int
	window      time.Duration
	now         func() time.Time
}

type clientLimit struct {
	mu       sync.Mutex
	requests []time.Time
}

// NewRateLimiter creates a limiter. Idle clients are forgotten after two windows.
func NewRateLimiter(logger *zap.Logger, maxRequests int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		clients:     gocache.New(2*window, 2*window),
		logger:      logger,
		maxRequests: maxRequests,
		window:      window,
		now:         time.Now,
	}
}

// Allow records a request from clientID and reports whether it is within the limit.
func (rl *RateLimiter) Allow(clientID string) bool {
	if rl.maxRequests <= 0 {
		return true
	}

	v, found := rl.clients.Get(clientID)
	if !found {
		// Add loses to a concurrent first request; Get returns the winner either way.
		_ = rl.clients.Add(clientID, &clientLimit{}, gocache.DefaultExpiration)
		v, _ = rl.clients.Get(clientID)
	}
	client, ok := v.(*clientLimit)
	if !ok {
		return true
	}
	rl.clients.SetDefault(clientID, client)

	client.mu.Lock()
	defer client.mu.Unlock()

	now := rl.now()
	cutoff := now.Add(-rl.window)
	valid := client.requests[:0]
	for _, at := range client.requests {
		if at.After(cutoff) {
			valid = append(valid, at)
		}
	}
	client.requests = valid

	if len(client.requests) >= rl.maxRequests {
		rl.logger.Warn("Rate limit exceeded",
			zap.String("client_id", clientID),
			zap.Int("max_requests", rl.maxRequests),
			zap.Duration("window", rl.window))
		return false
	}
	client.requests = append(client.requests, now)
	return true
}

// RateLimit rejects requests over the limit, keyed by client IP.
func RateLimit(rl *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.Allow(c.ClientIP()) {
			renderer.HTML(c, http.StatusTooManyRequests, "Too many attempts",
				views.ErrorPage(http.StatusTooManyRequests, "Too many attempts. Please wait a minute and try again."))
			c.Abort()
			return
		}
		c.Next()
	}
}
