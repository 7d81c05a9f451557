package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/theatre-api/internal/handler/prometheus"
	"github.com/jwalitptl/theatre-api/internal/middleware"
	"github.com/jwalitptl/theatre-api/pkg/validator"
)

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

type RouterConfig struct {
	Mode           string
	RequestTimeout time.Duration
	MaxBodySize    int64
	RateLimit      float64
	RateBurst      int
	CORSConfig     middleware.CORSConfig
}

type Router struct {
	engine    *gin.Engine
	auth      *middleware.AuthMiddleware
	metrics   *prometheus.Handler
	health    Handler
	protected []Handler
	config    RouterConfig
}

// NewRouter builds the engine and its global middleware. health is mounted
// without authentication; every other handler sits behind auth and the
// rate limiter.
func NewRouter(
	auth *middleware.AuthMiddleware,
	metrics *prometheus.Handler,
	log zerolog.Logger,
	health Handler,
	config RouterConfig,
	handlers ...Handler,
) (*Router, error) {
	if config.Mode != "" {
		gin.SetMode(config.Mode)
	}
	if err := validator.RegisterGin(); err != nil {
		return nil, err
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 10 * time.Second
	}
	if config.MaxBodySize <= 0 {
		config.MaxBodySize = middleware.DefaultMaxBodySize
	}

	engine := gin.New()
	engine.Use(
		middleware.RequestID(),
		middleware.Recovery(),
		middleware.Tracing(),
		middleware.Logger(log),
		metrics.Middleware(),
		middleware.CORS(config.CORSConfig),
		middleware.ErrorHandler(),
	)

	return &Router{
		engine:    engine,
		auth:      auth,
		metrics:   metrics,
		health:    health,
		protected: handlers,
		config:    config,
	}, nil
}

func (r *Router) Setup() {
	r.engine.GET("/metrics", r.metrics.Handler())

	api := r.engine.Group("/api/v1")
	r.health.RegisterRoutes(api)

	protected := api.Group("")
	protected.Use(
		middleware.SizeLimit(r.config.MaxBodySize),
		middleware.Timeout(r.config.RequestTimeout),
		r.auth.Authenticate(),
	)
	if r.config.RateLimit > 0 {
		protected.Use(middleware.NewRateLimiter(r.config.RateLimit, r.config.RateBurst).RateLimit())
	}
	for _, h := range r.protected {
		h.RegisterRoutes(protected)
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
