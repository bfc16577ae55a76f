package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/harvest/models"
)

// Banner returns a handler for GET /.
func Banner() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"service": "harvest", "version": Version, "docs": "/api/v1/actors"})
	}
}

// Health returns a handler for GET /api/v1/health.
//
// The service reports degraded while every worker is busy and the backlog
// is longer than the pool.
func Health(q TaskQueue, actors Catalog, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats := q.Stats()

		status := "healthy"
		if stats.Busy >= stats.Workers && stats.Pending > stats.Workers {
			status = "degraded"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:  status,
			Uptime:  time.Since(startTime).Round(time.Second).String(),
			Queue:   stats,
			Actors:  actors.Len(),
			Version: Version,
		})
	}
}
