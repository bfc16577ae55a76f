package models

// Status event values emitted to the status sink.
const (
	StatusStarted  = "started"
	StatusSuccess  = "success"
	StatusError    = "error"
	StatusProgress = "progress"
)

// Event kinds map to the two sink endpoints.
const (
	KindStatus       = "status"
	KindEnrichUpdate = "enrich-update"
)

// StatusEvent is one best-effort notification about a run.
type StatusEvent struct {
	CorrelationID string `json:"-"`
	Kind          string `json:"-"`

	Status   string    `json:"status,omitempty"`
	Result   any       `json:"result,omitempty"`
	Error    string    `json:"error,omitempty"`
	Progress *Progress `json:"progress,omitempty"`

	// EnrichedPlace is set for enrich-update events only.
	EnrichedPlace Record `json:"enrichedPlace,omitempty"`
}
