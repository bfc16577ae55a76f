package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/harvest/proxy"
)

// Actors returns a handler for GET /api/v1/actors.
func Actors(actors Catalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"actors": actors.List()})
	}
}

// Proxies returns a handler for GET /api/v1/proxies/stats. pool may be nil
// when no proxies are configured.
func Proxies(pool ProxyStats) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats := []proxy.Descriptor{}
		if pool != nil {
			stats = pool.Stats()
		}
		active := 0
		for _, d := range stats {
			if d.Active {
				active++
			}
		}
		c.JSON(http.StatusOK, gin.H{"total": len(stats), "active": active, "proxies": stats})
	}
}
