package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "minimalapi/school/docs" // register Swagger document
)

// Router wraps a configured Gin engine and exposes it as an http.Handler.
type Router struct {
	engine *gin.Engine
}

// RouterConfig carries the settings NewRouter needs from config.Config.
type RouterConfig struct {
	ServiceName string
	// BootstrapTimeout bounds a run started by POST /admin/bootstrap.
	BootstrapTimeout time.Duration
}

// NewRouter constructs a Router with the full middleware chain and all routes
// registered. Middleware order, outermost first:
//  1. RequestID: X-Request-Id in and out, stored in the request context
//  2. Tracing: server span per request
//  3. Metrics: Prometheus request counters
//  4. RequestLogger: structured request logging
//  5. Recovery: panic to 500, seen by everything above
func NewRouter(b bootstrapService, s studentService, cfg RouterConfig) *Router {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	metrics := NewMetrics()

	engine.Use(RequestID())
	engine.Use(Tracing(cfg.ServiceName))
	engine.Use(metrics.Middleware())
	engine.Use(RequestLogger(slog.Default()))
	engine.Use(Recovery(slog.Default()))

	h := &Handler{
		bootstrapper:     b,
		students:         s,
		serviceName:      cfg.ServiceName,
		bootstrapTimeout: cfg.BootstrapTimeout,
	}

	engine.GET("/", h.ListStudents)
	engine.GET("/read/:id", h.GetStudent)
	engine.GET("/read/born-after/:date", h.BornAfter)
	engine.POST("/create", h.CreateStudent)
	engine.PUT("/update/:id", h.UpdateStudent)
	engine.DELETE("/delete/:id", h.DeleteStudent)

	engine.GET("/health", h.Health)
	engine.GET("/health/deep", h.DeepHealth)
	engine.GET("/ready", h.Ready)
	engine.POST("/admin/bootstrap", h.Bootstrap)
	engine.GET("/metrics", gin.WrapH(metrics.Handler()))

	// API docs at /swagger/index.html
	engine.GET("/swagger", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/swagger/index.html")
	})
	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return &Router{engine: engine}
}

// Handler returns the underlying http.Handler for use with net/http servers.
func (r *Router) Handler() http.Handler {
	return r.engine
}
