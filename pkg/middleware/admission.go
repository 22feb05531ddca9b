package middleware

import (
	"strings"
	"sync"
	"time"

	"audio-library/backend/pkg/errors"
	"audio-library/backend/pkg/logger"
	"audio-library/backend/pkg/metrics"

	"github.com/gin-gonic/gin"
)

// Headers a proxy may set that carry client-controlled values
var forwardingHeaders = []string{
	"X-Forwarded-For",
	"X-Real-IP",
	"X-Cluster-Client-IP",
	"X-Forwarded",
	"X-Forwarded-Proto",
	"X-Forwarded-Host",
}

var injectionPatterns = []string{"<script", "javascript:", "data:"}

// GuardOptions configures the admission guard
type GuardOptions struct {
	// Threshold is the number of requests allowed per Window before a block
	Threshold int
	Window    time.Duration
	// BlockTTL lifts a block after the given time. Zero blocks until restart.
	BlockTTL time.Duration
	// MaxRequestSize caps the declared Content-Length. Zero disables the check.
	MaxRequestSize int64
	// SweepInterval runs MemoryWindowStore.Sweep periodically when positive
	SweepInterval time.Duration
	KeyFunc       func(*gin.Context) string
	Now           func() time.Time
}

// DefaultGuardOptions returns 100 requests per minute with permanent blocks
func DefaultGuardOptions() GuardOptions {
	return GuardOptions{
		Threshold:      100,
		Window:         time.Minute,
		MaxRequestSize: 11 << 20,
		SweepInterval:  time.Minute,
		KeyFunc: func(c *gin.Context) string {
			return c.ClientIP()
		},
		Now: time.Now,
	}
}

// Guard runs the block-list, structural and sliding-window checks once per request
type Guard struct {
	store    WindowStore
	options  GuardOptions
	logger   *logger.Logger
	stop     chan struct{}
	stopOnce sync.Once
}

func NewGuard(store WindowStore, log *logger.Logger, opts GuardOptions) *Guard {
	defaults := DefaultGuardOptions()
	if opts.Threshold <= 0 {
		opts.Threshold = defaults.Threshold
	}
	if opts.Window <= 0 {
		opts.Window = defaults.Window
	}
	if opts.KeyFunc == nil {
		opts.KeyFunc = defaults.KeyFunc
	}
	if opts.Now == nil {
		opts.Now = defaults.Now
	}

	g := &Guard{
		store:   store,
		options: opts,
		logger:  log.WithComponent("admission"),
		stop:    make(chan struct{}),
	}

	if sweeper, ok := store.(interface {
		Sweep(time.Time, time.Duration)
	}); ok && opts.SweepInterval > 0 {
		go g.sweep(sweeper)
	}

	return g
}

// Close stops the background sweeper
func (g *Guard) Close() {
	g.stopOnce.Do(func() { close(g.stop) })
}

// Middleware returns the gin handler for the guard
func (g *Guard) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		client := g.options.KeyFunc(c)
		route := c.FullPath()
		now := g.options.Now()
		ctx := c.Request.Context()

		blocked, err := g.store.IsBlocked(ctx, client, now)
		if err != nil {
			g.logger.LogError(err, "admission store unavailable, allowing request", "client", client)
		}
		if blocked {
			metrics.AdmissionRejections.WithLabelValues(metrics.OutcomeBlocked, route).Inc()
			c.Error(errors.NewBlockedError("client blocked due to suspicious activity"))
			c.Abort()
			return
		}

		if reason := g.invalidReason(c); reason != "" {
			g.logger.Warn("rejected malformed request",
				"client", client,
				"path", c.Request.URL.Path,
				"reason", reason,
			)
			metrics.AdmissionRejections.WithLabelValues(metrics.OutcomeInvalid, route).Inc()
			c.Error(errors.NewBadRequestError("invalid request").WithDetail(reason))
			c.Abort()
			return
		}

		count, err := g.store.Record(ctx, client, now, g.options.Window)
		if err != nil {
			g.logger.LogError(err, "admission store unavailable, allowing request", "client", client)
			c.Next()
			return
		}

		if count > g.options.Threshold {
			if err := g.store.Block(ctx, client, now, g.options.BlockTTL); err != nil {
				g.logger.LogError(err, "failed to block client", "client", client)
			} else {
				metrics.AdmissionRejections.WithLabelValues(metrics.OutcomeNewBlock, route).Inc()
				g.logger.Warn("client blocked for exceeding request threshold",
					"client", client,
					"count", count,
					"threshold", g.options.Threshold,
					"window", g.options.Window.String(),
				)
			}
		}

		c.Next()
	}
}

func (g *Guard) invalidReason(c *gin.Context) string {
	for _, name := range forwardingHeaders {
		for _, value := range c.Request.Header.Values(name) {
			lower := strings.ToLower(value)
			for _, pattern := range injectionPatterns {
				if strings.Contains(lower, pattern) {
					return "suspicious " + strings.ToLower(name) + " header"
				}
			}
		}
	}
	if g.options.MaxRequestSize > 0 && c.Request.ContentLength > g.options.MaxRequestSize {
		return "request body too large"
	}
	return ""
}

func (g *Guard) sweep(sweeper interface{ Sweep(time.Time, time.Duration) }) {
	ticker := time.NewTicker(g.options.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			sweeper.Sweep(g.options.Now(), g.options.Window)
		case <-g.stop:
			return
		}
	}
}
