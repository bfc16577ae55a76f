package models

// ScrapeRequest is the payload for POST /api/v1/scrape.
type ScrapeRequest struct {
	// ActorID selects the extractor. Required.
	ActorID string `json:"actorId" binding:"required"`

	// InputData is passed to the extractor unchanged.
	InputData map[string]any `json:"inputData"`

	// RunID is the caller's correlation id. When set it doubles as the task id
	// so status callbacks and polling use the same identifier.
	RunID string `json:"runId,omitempty"`
}

// EnrichRequest is the payload for POST /api/v1/enrich.
type EnrichRequest struct {
	RunID  string   `json:"runId" binding:"required"`
	Places []Record `json:"places" binding:"required"`
}
