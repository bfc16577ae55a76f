// Package api wires the gin engine serving the task API.
package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/harvest/api/handler"
	"github.com/use-agent/harvest/api/middleware"
	"github.com/use-agent/harvest/config"
	"github.com/use-agent/harvest/metrics"
)

// Deps are the collaborators the routes read from.
type Deps struct {
	Queue   handler.TaskQueue
	Actors  handler.Catalog
	Proxies handler.ProxyStats
	Limiter *middleware.Limiter
	Started time.Time
}

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// The banner, health and metrics endpoints stay outside auth for probes.
func NewRouter(cfg *config.Config, deps Deps) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	r.GET("/", handler.Banner())
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	v1 := r.Group("/api/v1")
	v1.GET("/health", handler.Health(deps.Queue, deps.Actors, deps.Started))

	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	if deps.Limiter != nil {
		protected.Use(deps.Limiter.Handler())
	}

	protected.POST("/scrape", handler.Submit(deps.Queue))
	protected.POST("/enrich", handler.Enrich(deps.Queue))
	protected.GET("/task/:id", handler.GetTask(deps.Queue))
	protected.DELETE("/task/:id", handler.CancelTask(deps.Queue))

	protected.GET("/actors", handler.Actors(deps.Actors))
	protected.GET("/proxies/stats", handler.Proxies(deps.Proxies))

	return r
}
