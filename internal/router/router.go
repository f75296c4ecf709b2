package router

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/DigiMedic/PillSee/internal/config"
	"github.com/DigiMedic/PillSee/internal/handler"
	queryHandler "github.com/DigiMedic/PillSee/internal/handler/query"
	"github.com/DigiMedic/PillSee/internal/middleware"
)

type Router struct {
	engine  *gin.Engine
	queryH  *queryHandler.Handler
	h       *handler.Handler
	cfg     *config.Config
	redis   *redis.Client
	metrics *routerMetrics
}

type routerMetrics struct {
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	errorTotal      *prometheus.CounterVec
}

func NewRouter(cfg *config.Config, queryH *queryHandler.Handler, h *handler.Handler, redisClient *redis.Client) *Router {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	r := &Router{
		engine:  engine,
		queryH:  queryH,
		h:       h,
		cfg:     cfg,
		redis:   redisClient,
		metrics: initRouterMetrics("pillsee"),
	}

	engine.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
		middleware.ErrorHandler(),
		r.metricsMiddleware(),
		middleware.Timeout(middleware.TimeoutConfig{
			Duration: time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
		}),
	)

	corsConfig := middleware.DefaultCORSConfig()
	if len(cfg.Security.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.Security.AllowedOrigins
	}
	engine.Use(middleware.CORS(corsConfig))

	sizeConfig := middleware.DefaultSizeLimitConfig()
	if cfg.Security.MaxBodyBytes > 0 {
		sizeConfig.MaxBodySize = cfg.Security.MaxBodyBytes
	}
	sizeConfig.SkipPaths = []string{"/health", "/metrics"}
	engine.Use(middleware.SizeLimit(sizeConfig))

	return r
}

func (r *Router) Setup() {
	r.engine.GET("/health", r.h.HealthCheck)
	r.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.engine.Group("/api/v1")
	api.Use(func(c *gin.Context) {
		c.Header("X-API-Version", "1.0")
		c.Next()
	})

	api.GET("/stats", r.h.Stats)
	r.queryH.RegisterRoutes(api,
		r.rateLimiter("text", r.cfg.RateLimit.TextPerMinute),
		r.rateLimiter("image", r.cfg.RateLimit.ImagePerMinute),
	)
}

// rateLimiter prefers the shared Redis window when Redis is configured and
// falls back to the in-process per-IP limiter otherwise.
func (r *Router) rateLimiter(scope string, perMinute int) gin.HandlerFunc {
	if r.redis != nil {
		return middleware.NewRedisRateLimiter(r.redis, scope, perMinute).RateLimit()
	}
	return middleware.NewIPRateLimiter(perMinute).RateLimit()
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func initRouterMetrics(prefix string) *routerMetrics {
	m := &routerMetrics{
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: prefix + "_http_request_duration_seconds",
				Help: "Duration of HTTP requests in seconds",
			},
			[]string{"method", "path", "status"},
		),
		requestTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		errorTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_http_errors_total",
				Help: "Total number of HTTP errors",
			},
			[]string{"method", "path", "type"},
		),
	}
	prometheus.MustRegister(m.requestDuration, m.requestTotal, m.errorTotal)
	return m
}

func (r *Router) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := fmt.Sprintf("%d", c.Writer.Status())
		duration := time.Since(start).Seconds()

		r.metrics.requestDuration.WithLabelValues(c.Request.Method, path, status).Observe(duration)
		r.metrics.requestTotal.WithLabelValues(c.Request.Method, path, status).Inc()

		if c.Writer.Status() >= 400 {
			r.metrics.errorTotal.WithLabelValues(c.Request.Method, path, "http").Inc()
		}
	}
}
