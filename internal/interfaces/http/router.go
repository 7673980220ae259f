package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/aptrec/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/aptrec/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/aptrec/internal/interfaces/http/handlers"
	"github.com/turtacn/aptrec/internal/interfaces/http/middleware"
)

// RouterConfig aggregates handler and middleware dependencies.
type RouterConfig struct {
	RecommendHandler *handlers.RecommendHandler
	HealthHandler    *handlers.HealthHandler

	// RateLimiter is optional; nil disables limiting.
	RateLimiter *middleware.KeyedLimiter
	RateLimit   middleware.RateLimitConfig
	CORS        *middleware.CORSConfig

	Logger  logging.Logger
	Metrics *prometheus.AppMetrics
	// MetricsHandler is mounted at MetricsPath when set.
	MetricsHandler http.Handler
	MetricsPath    string
	// MaxBodyBytes caps request bodies; zero means 1 MiB.
	MaxBodyBytes int64
	// AdminToken guards /api/v1/admin; empty disables those routes.
	AdminToken string
}

// NewRouter builds the gin engine: global middleware, probes, metrics and
// the /api/v1 resource groups.
func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true

	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(cfg.Logger))
	if cfg.CORS != nil {
		r.Use(middleware.CORS(*cfg.CORS))
	}
	r.Use(middleware.AccessLog(cfg.Logger, cfg.Metrics, middleware.DefaultLoggingConfig()))
	if cfg.RateLimiter != nil {
		r.Use(middleware.RateLimit(cfg.RateLimiter, cfg.RateLimit))
	}
	r.Use(limitBody(cfg.MaxBodyBytes))

	if h := cfg.HealthHandler; h != nil {
		r.GET("/healthz", h.Liveness)
		r.GET("/readyz", h.Readiness)
		r.GET("/health", h.Detailed)
	}
	if cfg.MetricsHandler != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(cfg.MetricsHandler))
	}

	api := r.Group("/api/v1")
	registerRecommendRoutes(api, cfg.RecommendHandler)
	registerAdminRoutes(api.Group("/admin", middleware.AdminAuth(cfg.AdminToken)), cfg.RecommendHandler)
	return r
}

func registerRecommendRoutes(r *gin.RouterGroup, h *handlers.RecommendHandler) {
	if h == nil {
		return
	}
	r.GET("/recommendations", h.Get)
	r.POST("/recommendations", h.Create)
	r.GET("/nearby", h.Nearby)
	r.GET("/properties", h.Properties)
	r.GET("/landmarks", h.Landmarks)
}

func registerAdminRoutes(r *gin.RouterGroup, h *handlers.RecommendHandler) {
	if h == nil {
		return
	}
	r.POST("/reload", h.Reload)
}

func limitBody(n int64) gin.HandlerFunc {
	if n <= 0 {
		n = 1 << 20
	}
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		}
		c.Next()
	}
}

//Personal.AI order the ending
