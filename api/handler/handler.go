// Package handler holds the gin handlers of the HTTP API.
package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/harvest/models"
	"github.com/use-agent/harvest/proxy"
)

// Version is reported by the banner and health endpoints.
const Version = "0.1.0"

// TaskQueue is the part of *queue.Queue the handlers use.
type TaskQueue interface {
	Submit(ctx context.Context, actorID string, input map[string]any, correlationID string) (models.SubmitResponse, error)
	Status(id string) (models.TaskStatusResponse, error)
	Cancel(id string) (models.TaskStatusResponse, error)
	Stats() models.QueueStats
}

// Catalog lists registered actors. *extractor.Registry implements it.
type Catalog interface {
	List() []models.ActorInfo
	Len() int
}

// ProxyStats reports the proxy pool. *proxy.Pool implements it.
type ProxyStats interface {
	Stats() []proxy.Descriptor
}

// respondError maps err to an HTTP status and writes a structured body.
func respondError(c *gin.Context, err error) {
	code := models.CodeOf(err)
	c.JSON(statusFor(code), models.ErrorResponse{
		Error: &models.ErrorDetail{Code: code, Message: models.MessageOf(err)},
	})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Error: &models.ErrorDetail{Code: models.ErrCodeInvalidInput, Message: message},
	})
}

func statusFor(code string) int {
	switch code {
	case models.ErrCodeInvalidInput, models.ErrCodeConfiguration:
		return http.StatusBadRequest
	case models.ErrCodeNotFound, models.ErrCodeUnknownActor:
		return http.StatusNotFound
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case models.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
