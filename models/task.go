package models

import (
	"fmt"
	"time"
)

// TaskState is the lifecycle state of a queued task.
type TaskState string

const (
	StatePending TaskState = "PENDING"
	StateStarted TaskState = "STARTED"
	StateSuccess TaskState = "SUCCESS"
	StateFailure TaskState = "FAILURE"
)

// Terminal reports whether no further transition is allowed.
func (s TaskState) Terminal() bool {
	return s == StateSuccess || s == StateFailure
}

// canTransition encodes PENDING -> STARTED -> {SUCCESS | FAILURE}.
// PENDING may also go straight to FAILURE (cancelled before a worker picked it up).
func (s TaskState) canTransition(next TaskState) bool {
	switch s {
	case StatePending:
		return next == StateStarted || next == StateFailure
	case StateStarted:
		return next == StateSuccess || next == StateFailure
	default:
		return false
	}
}

// Result status values carried in TaskResult.Status.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// TaskResult is the payload a finished task returns. The dispatcher always
// produces one, even when the extractor failed.
type TaskResult struct {
	Status string   `json:"status"`
	Data   []Record `json:"data,omitempty"`
	Error  string   `json:"error,omitempty"`
	Code   string   `json:"code,omitempty"`
	Trace  string   `json:"traceback,omitempty"`
}

// OK reports whether the result is a success payload.
func (r *TaskResult) OK() bool { return r != nil && r.Status == ResultSuccess }

// SuccessResult wraps extracted records.
func SuccessResult(data []Record) TaskResult {
	if data == nil {
		data = []Record{}
	}
	return TaskResult{Status: ResultSuccess, Data: data}
}

// ErrorResult converts err into the structured failure payload.
func ErrorResult(err error, trace string) TaskResult {
	return TaskResult{
		Status: ResultError,
		Error:  MessageOf(err),
		Code:   CodeOf(err),
		Trace:  trace,
	}
}

// Progress is the last progress report of a running task.
type Progress struct {
	Processed int    `json:"processed"`
	Total     int    `json:"total"`
	Message   string `json:"message,omitempty"`
}

// ProgressFunc receives progress reports; it must be safe for concurrent use.
type ProgressFunc func(Progress)

// Report calls f when it is non-nil.
func (f ProgressFunc) Report(processed, total int, message string) {
	if f != nil {
		f(Progress{Processed: processed, Total: total, Message: message})
	}
}

// Task is one queued unit of work.
type Task struct {
	ID            string         `json:"id"`
	ActorID       string         `json:"actorId"`
	Input         map[string]any `json:"input"`
	CorrelationID string         `json:"correlationId"`
	State         TaskState      `json:"state"`
	Result        *TaskResult    `json:"result,omitempty"`
	Error         string         `json:"error,omitempty"`
	Progress      *Progress      `json:"progress,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
	StartedAt     time.Time      `json:"startedAt,omitempty"`
	FinishedAt    time.Time      `json:"finishedAt,omitempty"`
}

// Transition moves the task to next, stamping the matching timestamp.
// Transitions out of a terminal state, or skipping STARTED on the way to
// SUCCESS, are rejected and leave the task untouched.
func (t *Task) Transition(next TaskState, now time.Time) error {
	if !t.State.canTransition(next) {
		return fmt.Errorf("task %s: illegal transition %s -> %s", t.ID, t.State, next)
	}
	t.State = next
	switch next {
	case StateStarted:
		t.StartedAt = now
	case StateSuccess, StateFailure:
		t.FinishedAt = now
	}
	return nil
}
