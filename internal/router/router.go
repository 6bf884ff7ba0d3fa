package router

import (
	"time"

	"github.com/gin-gonic/gin"

	promhandler "github.com/jwalitptl/medvault-api/internal/handler/prometheus"
	"github.com/jwalitptl/medvault-api/internal/middleware"
)

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

type Router struct {
	engine   *gin.Engine
	auth     *middleware.AuthMiddleware
	audit    *middleware.AuditMiddleware
	metrics  *promhandler.Handler
	health   Handler
	handlers []Handler
	config   RouterConfig
}

type RouterConfig struct {
	// Mode is the gin mode, release unless set.
	Mode           string
	CORSConfig     middleware.CORSConfig
	SecurityConfig middleware.SecurityConfig
	SizeLimit      middleware.SizeLimitConfig
	RequestTimeout time.Duration
	MetricsEnabled bool
	MetricsPath    string
}

func NewRouter(
	auth *middleware.AuthMiddleware,
	audit *middleware.AuditMiddleware,
	metrics *promhandler.Handler,
	health Handler,
	handlers []Handler,
	config RouterConfig,
) *Router {
	if config.Mode == "" {
		config.Mode = gin.ReleaseMode
	}
	if config.MetricsPath == "" {
		config.MetricsPath = "/metrics"
	}
	gin.SetMode(config.Mode)

	engine := gin.New()
	engine.HandleMethodNotAllowed = true

	r := &Router{
		engine:   engine,
		auth:     auth,
		audit:    audit,
		metrics:  metrics,
		health:   health,
		handlers: handlers,
		config:   config,
	}

	// Add core middlewares
	engine.Use(
		middleware.RequestID(),
		middleware.Recovery(),
		middleware.Logger(),
		middleware.ErrorHandler(),
	)
	if config.MetricsEnabled && metrics != nil {
		engine.Use(metrics.Middleware())
	}
	engine.Use(
		middleware.SecurityHeaders(config.SecurityConfig),
		middleware.CORS(config.CORSConfig),
		middleware.SizeLimit(config.SizeLimit),
		middleware.Timeout(middleware.TimeoutConfig{Duration: config.RequestTimeout}),
	)

	return r
}

func (r *Router) Setup() {
	api := r.engine.Group("/api/v1")

	// Health check endpoints
	r.health.RegisterRoutes(api)
	if r.config.MetricsEnabled && r.metrics != nil {
		api.GET(r.config.MetricsPath, r.metrics.Handler())
	}

	records := api.Group("")
	records.Use(
		middleware.NoStore(),
		r.auth.Session(),
		r.audit.AuditLog("patient"),
	)
	for _, h := range r.handlers {
		h.RegisterRoutes(records)
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
