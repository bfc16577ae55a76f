package models

import (
	"errors"
	"fmt"
)

// Error codes used in task results, API responses and internal error handling.
const (
	ErrCodeConfiguration   = "CONFIGURATION_ERROR"
	ErrCodeUnknownActor    = "UNKNOWN_ACTOR"
	ErrCodeNavigation      = "NAVIGATION_FAILED"
	ErrCodeExtractionField = "EXTRACTION_FIELD_FAILED"
	ErrCodeDelivery        = "DELIVERY_FAILED"
	ErrCodeTimeout         = "SCRAPE_TIMEOUT"
	ErrCodeBrowserCrash    = "BROWSER_CRASH"
	ErrCodeCancelled       = "TASK_CANCELLED"
	ErrCodeInvalidInput    = "INVALID_INPUT"
	ErrCodeRateLimited     = "RATE_LIMITED"
	ErrCodeUnauthorized    = "UNAUTHORIZED"
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeInternal        = "INTERNAL_ERROR"
)

// ErrorDetail is the structured error in API responses.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ScrapeError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type ScrapeError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *ScrapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// NewScrapeError creates a new ScrapeError.
func NewScrapeError(code, message string, err error) *ScrapeError {
	return &ScrapeError{Code: code, Message: message, Err: err}
}

// ToDetail converts an internal error to an API-facing ErrorDetail.
func (e *ScrapeError) ToDetail() *ErrorDetail {
	return &ErrorDetail{Code: e.Code, Message: e.Message}
}

// ConfigurationError reports a missing or malformed input field.
func ConfigurationError(field, reason string) *ScrapeError {
	return NewScrapeError(ErrCodeConfiguration, field+" "+reason, nil)
}

// UnknownActorError reports an actor id with no registered extractor.
func UnknownActorError(actorID string) *ScrapeError {
	return NewScrapeError(ErrCodeUnknownActor, "unknown actor_id: "+actorID, nil)
}

// CodeOf returns the code of the first ScrapeError in err's chain, or
// ErrCodeInternal when there is none.
func CodeOf(err error) string {
	var se *ScrapeError
	if errors.As(err, &se) {
		return se.Code
	}
	return ErrCodeInternal
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code string) bool {
	return err != nil && CodeOf(err) == code
}

// MessageOf returns the client-safe message for err: the ScrapeError message
// when present, otherwise err.Error().
func MessageOf(err error) string {
	var se *ScrapeError
	if errors.As(err, &se) {
		return se.Message
	}
	return err.Error()
}
