package router

import (
	"context"
	"net/http"
	"time"

	"audio-library/backend/audio/api"
	"audio-library/backend/pkg/config"
	"audio-library/backend/pkg/di"
	"audio-library/backend/pkg/errors"
	"audio-library/backend/pkg/logger"
	"audio-library/backend/pkg/metrics"
	"audio-library/backend/pkg/middleware"
	"audio-library/backend/pkg/validator"

	"github.com/gin-gonic/gin"
)

// Track server start time for uptime calculations
var startTime = time.Now()

// Router is the main router for the application
type Router struct {
	Engine    *gin.Engine
	Container *di.Container
	Logger    *logger.Logger
	Config    *config.Config

	guard    *middleware.Guard
	limiters []*middleware.RateLimiter
}

// New creates the engine and installs the global middleware chain:
// request logging, error rendering, recovery, CORS, admission, the
// suspicious-pattern logger and OpenAPI request validation.
func New(container *di.Container) *Router {
	logger.SetGlobal(container.Logger)
	cfg := container.Config

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.Security.TrustedProxies); err != nil {
		container.Logger.LogError(err, "Invalid TRUSTED_PROXIES, ignoring forwarding headers")
		_ = engine.SetTrustedProxies(nil)
	}

	guard := middleware.NewGuard(container.WindowStore, container.Logger, middleware.GuardOptions{
		Threshold:      cfg.Security.RequestLimit,
		Window:         cfg.Security.RequestWindow,
		BlockTTL:       cfg.Security.BlockTTL,
		MaxRequestSize: cfg.Security.MaxRequestSize,
		SweepInterval:  cfg.Security.RequestWindow,
	})

	engine.Use(logger.Middleware(container.Logger))
	engine.Use(errors.ErrorHandler())
	engine.Use(errors.RecoveryWithLogger())
	engine.Use(middleware.CORS(cfg.Security.AllowedOrigins))
	engine.Use(guard.Middleware())
	engine.Use(middleware.SecurityLogger(container.Logger))

	if cfg.Server.APIValidation {
		v, err := validator.NewOpenAPIValidator(context.Background())
		if err != nil {
			container.Logger.LogError(err, "Failed to initialize OpenAPI validator, skipping validation")
		} else {
			engine.Use(v.Middleware())
		}
	}

	return &Router{
		Engine:    engine,
		Container: container,
		Logger:    container.Logger,
		Config:    cfg,
		guard:     guard,
	}
}

// SetupRoutes registers all application routes
func (r *Router) SetupRoutes() {
	sec := r.Config.Security

	limits := api.RouteLimits{
		Languages:     r.routeLimiter("languages", sec.LanguagesLimit),
		GetByLanguage: r.routeLimiter("get_by_language", sec.GetByLangLimit),
		Upload:        r.routeLimiter("upload", sec.UploadLimit),
	}

	audioHandler := api.NewAudioHandler(r.Container.AudioService, sec.MaxRequestSize)
	api.RegisterAudioRoutes(r.Engine, audioHandler, limits)

	r.Engine.GET("/health", r.Container.Health.Handler())
	r.Engine.GET("/metrics", metrics.Handler())
	r.Engine.GET("/api/docs/openapi.yaml", validator.DocumentHandler())
	r.Engine.GET("/", r.rootHandler())

	r.Engine.NoRoute(func(c *gin.Context) {
		c.Error(errors.NewNotFoundError("route not found").WithDetail(c.Request.Method + " " + c.Request.URL.Path))
	})
}

// Close stops the background sweepers of the admission layer
func (r *Router) Close() {
	r.guard.Close()
	for _, l := range r.limiters {
		l.Close()
	}
}

func (r *Router) routeLimiter(route string, limit int) gin.HandlerFunc {
	if limit <= 0 {
		return nil
	}
	l := middleware.NewRateLimiter(r.Logger, middleware.RateLimiterOptions{
		Route:          route,
		Limit:          limit,
		Window:         r.Config.Security.RouteLimitSpan,
		ExpiryDuration: r.Config.Security.LimiterIdleTime,
	})
	r.limiters = append(r.limiters, l)
	return l.Middleware()
}

// rootHandler returns the service banner with the endpoint map
func (r *Router) rootHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service": "audio-library",
			"status":  "running",
			"env":     r.Config.Server.Env,
			"uptime":  time.Since(startTime).Round(time.Second).String(),
			"endpoints": gin.H{
				"languages":   "GET /api/audio/languages",
				"by_language": "GET /api/audio/{language}",
				"upload":      "POST /api/audio/upload",
				"file":        "GET /api/audio/files/{filename}",
				"list":        "GET /api/audio/",
				"update":      "PATCH /api/audio/{id}",
				"delete":      "DELETE /api/audio/{id}",
				"health":      "GET /health",
				"metrics":     "GET /metrics",
				"docs":        "GET /api/docs/openapi.yaml",
			},
		})
	}
}
