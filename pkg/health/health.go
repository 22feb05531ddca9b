package health

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"audio-library/backend/pkg/logger"
	"audio-library/backend/pkg/resilience"

	"github.com/gin-gonic/gin"
)

// Status represents the health status of a component
type Status string

const (
	// StatusUp indicates a component is working correctly
	StatusUp Status = "up"
	// StatusDown indicates a component is not working
	StatusDown Status = "down"
	// StatusDegraded indicates a component is working but with reduced functionality
	StatusDegraded Status = "degraded"
)

// Component represents a system component that can be health-checked
type Component struct {
	Name        string    `json:"name"`
	Status      Status    `json:"status"`
	Description string    `json:"description,omitempty"`
	Error       string    `json:"error,omitempty"`
	LastChecked time.Time `json:"last_checked"`
}

// Check represents a health check function
type Check func(ctx context.Context) (Status, string, error)

type registration struct {
	check    Check
	critical bool
}

// Checker runs the registered checks on demand
type Checker struct {
	mu      sync.RWMutex
	checks  map[string]registration
	timeout time.Duration
	log     *logger.Logger
}

// NewChecker creates a checker whose checks share one timeout
func NewChecker(log *logger.Logger, timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Checker{
		checks:  make(map[string]registration),
		timeout: timeout,
		log:     log.WithComponent("health"),
	}
}

// RegisterCheck adds a check. A critical component that is down makes the
// whole service unhealthy.
func (c *Checker) RegisterCheck(name string, critical bool, check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = registration{check: check, critical: critical}
}

// RegisterStoreCheck registers the asset store ping as a critical check
func (c *Checker) RegisterStoreCheck(ping func(ctx context.Context) error) {
	c.RegisterCheck("store", true, func(ctx context.Context) (Status, string, error) {
		if err := ping(ctx); err != nil {
			return StatusDown, "store unreachable", err
		}
		return StatusUp, "connected", nil
	})
}

// RegisterStorageCheck registers the file storage check. Storage problems
// degrade uploads but reads may still work.
func (c *Checker) RegisterStorageCheck(writable func() error) {
	c.RegisterCheck("storage", false, func(ctx context.Context) (Status, string, error) {
		if err := writable(); err != nil {
			return StatusDegraded, "storage directory not writable", err
		}
		return StatusUp, "writable", nil
	})
}

// RegisterBreakerCheck reports a circuit breaker. An open circuit means the
// dependency is bypassed, so the service is degraded rather than down.
func (c *Checker) RegisterBreakerCheck(name string, cb *resilience.CircuitBreaker) {
	c.RegisterCheck(name, false, func(ctx context.Context) (Status, string, error) {
		switch cb.State() {
		case resilience.StateOpen:
			return StatusDegraded, "circuit open", nil
		case resilience.StateHalfOpen:
			return StatusDegraded, "circuit half-open", nil
		}
		return StatusUp, "circuit closed", nil
	})
}

// Run executes all checks and reports whether every critical one is up
func (c *Checker) Run(ctx context.Context) ([]Component, bool) {
	c.mu.RLock()
	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	checks := make(map[string]registration, len(c.checks))
	for k, v := range c.checks {
		checks[k] = v
	}
	c.mu.RUnlock()
	sort.Strings(names)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	healthy := true
	components := make([]Component, 0, len(names))
	for _, name := range names {
		reg := checks[name]
		status, description, err := reg.check(ctx)

		component := Component{
			Name:        name,
			Status:      status,
			Description: description,
			LastChecked: time.Now(),
		}
		if err != nil {
			component.Error = err.Error()
			c.log.Error("Health check failed",
				"component", name,
				"status", string(status),
				"error", err.Error(),
			)
		}
		if reg.critical && status == StatusDown {
			healthy = false
		}
		components = append(components, component)
	}

	return components, healthy
}

// Handler serves the health report, 503 when a critical component is down
func (c *Checker) Handler() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		components, healthy := c.Run(ctx.Request.Context())

		status, code := "healthy", http.StatusOK
		if !healthy {
			status, code = "unhealthy", http.StatusServiceUnavailable
		}

		ctx.JSON(code, gin.H{
			"status":     status,
			"timestamp":  time.Now().UTC(),
			"components": components,
		})
	}
}
