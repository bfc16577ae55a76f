package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/harvest/models"
)

// EnrichmentActor is the actor POST /api/v1/enrich queues.
const EnrichmentActor = "website-enrichment"

// Submit returns a handler for POST /api/v1/scrape. Unknown actors are still
// queued; the task then completes with an UNKNOWN_ACTOR payload.
func Submit(q TaskQueue) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.ScrapeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		if req.InputData == nil {
			req.InputData = map[string]any{}
		}

		resp, err := q.Submit(c.Request.Context(), req.ActorID, req.InputData, req.RunID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, resp)
	}
}

// Enrich returns a handler for POST /api/v1/enrich.
func Enrich(q TaskQueue) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.EnrichRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		if len(req.Places) == 0 {
			badRequest(c, "places must not be empty")
			return
		}

		input := map[string]any{"places": req.Places, "runId": req.RunID}
		resp, err := q.Submit(c.Request.Context(), EnrichmentActor, input, req.RunID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, resp)
	}
}

// GetTask returns a handler for GET /api/v1/task/:id.
func GetTask(q TaskQueue) gin.HandlerFunc {
	return func(c *gin.Context) {
		st, err := q.Status(c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, st)
	}
}

// CancelTask returns a handler for DELETE /api/v1/task/:id.
func CancelTask(q TaskQueue) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if _, err := q.Cancel(id); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SubmitResponse{TaskID: id, Status: "cancelled"})
	}
}
