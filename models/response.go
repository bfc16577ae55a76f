package models

// SubmitResponse is returned when a task is queued.
type SubmitResponse struct {
	TaskID string `json:"taskId"`
	Status string `json:"status"`
}

// TaskStatusResponse is returned by GET /api/v1/task/:id.
type TaskStatusResponse struct {
	TaskID   string      `json:"taskId"`
	State    TaskState   `json:"state"`
	Result   *TaskResult `json:"result,omitempty"`
	Error    string      `json:"error,omitempty"`
	Progress *Progress   `json:"progress,omitempty"`
}

// ErrorResponse wraps an ErrorDetail for non-2xx responses.
type ErrorResponse struct {
	Error *ErrorDetail `json:"error"`
}

// QueueStats is a snapshot of the worker pool.
type QueueStats struct {
	Workers int `json:"workers"`
	Busy    int `json:"busy"`
	Pending int `json:"pending"`
}

// HealthResponse is returned by GET /api/v1/health.
type HealthResponse struct {
	Status  string     `json:"status"`
	Uptime  string     `json:"uptime"`
	Queue   QueueStats `json:"queue"`
	Actors  int        `json:"actors"`
	Version string     `json:"version"`
}

// ActorInfo describes one registered extractor.
type ActorInfo struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	Category     string         `json:"category,omitempty"`
	Required     []string       `json:"required,omitempty"`
	InputSchema  map[string]any `json:"inputSchema"`
	OutputSchema map[string]any `json:"outputSchema"`
}
