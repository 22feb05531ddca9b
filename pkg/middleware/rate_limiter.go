package middleware

import (
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"audio-library/backend/pkg/errors"
	"audio-library/backend/pkg/logger"
	"audio-library/backend/pkg/metrics"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimiterOptions configures a route-scoped limiter
type RateLimiterOptions struct {
	// Route labels log lines and metrics
	Route string
	// Limit admitted requests are allowed in any Window-long span
	Limit  int
	Window time.Duration
	// ExpiryDuration defines how long to keep idle client state in memory
	ExpiryDuration time.Duration
	// KeyFunc extracts the limiting key from a request
	KeyFunc func(*gin.Context) string
	Now     func() time.Time
}

// DefaultRateLimiterOptions returns 60 requests per minute keyed by client IP
func DefaultRateLimiterOptions() RateLimiterOptions {
	return RateLimiterOptions{
		Limit:          60,
		Window:         time.Minute,
		ExpiryDuration: time.Hour,
		KeyFunc: func(c *gin.Context) string {
			return c.ClientIP()
		},
		Now: time.Now,
	}
}

// client holds the admitted request times of one client on one route
type client struct {
	admitted []time.Time
	lastSeen time.Time
}

// RateLimiter keeps a sliding log per client on one route. Rejected
// requests are not logged against the client.
type RateLimiter struct {
	mu       sync.Mutex
	options  RateLimiterOptions
	clients  map[string]*client
	logger   *logger.Logger
	warnings *rate.Limiter
	stop     chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter creates a limiter and starts its idle-client cleanup
func NewRateLimiter(log *logger.Logger, options RateLimiterOptions) *RateLimiter {
	defaults := DefaultRateLimiterOptions()
	if options.Limit <= 0 {
		options.Limit = defaults.Limit
	}
	if options.Window <= 0 {
		options.Window = defaults.Window
	}
	if options.KeyFunc == nil {
		options.KeyFunc = defaults.KeyFunc
	}
	if options.Now == nil {
		options.Now = defaults.Now
	}

	r := &RateLimiter{
		options: options,
		clients: make(map[string]*client),
		logger:  log.WithComponent("rate_limiter"),
		// rejection warnings: 1/s sustained, bursts of 10
		warnings: rate.NewLimiter(rate.Every(time.Second), 10),
		stop:     make(chan struct{}),
	}
	if options.ExpiryDuration > 0 {
		go r.cleanup()
	}
	return r
}

// Close stops the cleanup goroutine
func (r *RateLimiter) Close() {
	r.stopOnce.Do(func() { close(r.stop) })
}

// Middleware returns a Gin middleware for rate limiting
func (r *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := r.options.KeyFunc(c)
		now := r.options.Now()

		retryAfter, ok := r.admit(key, now)
		if !ok {
			if r.warnings.AllowN(now, 1) {
				r.logger.Warn("rate limit exceeded",
					"client", key,
					"route", r.options.Route,
					"path", c.Request.URL.Path,
					"method", c.Request.Method,
				)
			}
			metrics.AdmissionRejections.WithLabelValues(metrics.OutcomeRateLimited, r.options.Route).Inc()

			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
			c.Header("X-RateLimit-Limit", strconv.Itoa(r.options.Limit))
			c.Error(errors.NewRateLimitError("rate limit exceeded").
				WithDetail(fmt.Sprintf("%d per %s", r.options.Limit, r.options.Window)))
			c.Abort()
			return
		}

		c.Next()
	}
}

// admit records now for key if fewer than Limit requests were admitted in
// the trailing window. Otherwise it returns the wait until the oldest entry
// leaves the window.
func (r *RateLimiter) admit(key string, now time.Time) (time.Duration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, exists := r.clients[key]
	if !exists {
		v = &client{}
		r.clients[key] = v
	}
	v.lastSeen = now
	v.admitted = prune(v.admitted, now.Add(-r.options.Window))

	if len(v.admitted) >= r.options.Limit {
		return v.admitted[0].Add(r.options.Window).Sub(now), false
	}
	v.admitted = append(v.admitted, now)
	return 0, true
}

// cleanup removes idle entries from the clients map
func (r *RateLimiter) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := r.options.Now()
			r.mu.Lock()
			for k, v := range r.clients {
				if now.Sub(v.lastSeen) > r.options.ExpiryDuration {
					delete(r.clients, k)
				}
			}
			r.mu.Unlock()
		case <-r.stop:
			return
		}
	}
}
