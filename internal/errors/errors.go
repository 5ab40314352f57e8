// Package errors defines the structured API error responses returned by the
// HTTP layer.
package errors

import (
	"fmt"
	"net/http"

	"github.com/go-chi/render"
)

// APIError represents a structured API error response
type APIError struct {
	StatusCode int         `json:"status_code"`
	ErrorCode  string      `json:"error_code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return e.Message
}

// Render implements the render.Renderer interface for chi/render
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.StatusCode)
	return nil
}

// ValidationError represents validation errors
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// New creates a new APIError with the given parameters
func New(statusCode int, errorCode, message string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
	}
}

// NewWithDetails creates a new APIError with additional details
func NewWithDetails(statusCode int, errorCode, message string, details interface{}) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
		Details:    details,
	}
}

// Predefined error types for common scenarios
var (
	// 400 Bad Request
	ErrInvalidRequest   = New(http.StatusBadRequest, "INVALID_REQUEST", "Invalid request format")
	ErrValidationFailed = New(http.StatusBadRequest, "VALIDATION_FAILED", "Request validation failed")
	ErrMissingParameter = New(http.StatusBadRequest, "MISSING_PARAMETER", "Required parameter is missing")

	// 404 Not Found
	ErrNotFound    = New(http.StatusNotFound, "NOT_FOUND", "Resource not found")
	ErrJobNotFound = New(http.StatusNotFound, "JOB_NOT_FOUND", "Processing job not found")

	// 409 Conflict
	ErrJobNotCompleted = New(http.StatusConflict, "JOB_NOT_COMPLETED", "Processing job has not completed")

	// 413 Payload Too Large
	ErrPayloadTooLarge = New(http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Uploaded file exceeds the size limit")

	// 422 Unprocessable Entity
	ErrUnprocessableFile = New(http.StatusUnprocessableEntity, "UNPROCESSABLE_FILE", "Uploaded file could not be processed")

	// 500 Internal Server Error
	ErrInternalServer = New(http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Internal server error")
	ErrReportFailed   = New(http.StatusInternalServerError, "REPORT_FAILED", "Report generation failed")
)

// ErrValidation creates a validation error with field details
func ErrValidation(field, message string) *APIError {
	return NewWithDetails(http.StatusBadRequest, "VALIDATION_FAILED", "Request validation failed", ValidationError{
		Field:   field,
		Message: message,
	})
}

// MissingColumnsError creates the response for an export missing required
// columns, naming exactly the absent ones.
func MissingColumnsError(columns []string) *APIError {
	return NewWithDetails(http.StatusBadRequest, "MISSING_COLUMNS",
		fmt.Sprintf("Input file is missing %d required column(s)", len(columns)),
		map[string][]string{"missing_columns": columns})
}

// SourceUnreadableError creates the response for an unreadable input file.
func SourceUnreadableError(err error) *APIError {
	return NewWithDetails(http.StatusBadRequest, "SOURCE_UNREADABLE",
		"Input file could not be opened or parsed", err.Error())
}

// EmptyAfterCleaningError creates the response for an export whose every row
// was filtered out. This is distinct from a missing-columns failure.
func EmptyAfterCleaningError() *APIError {
	return New(http.StatusUnprocessableEntity, "EMPTY_AFTER_CLEANING",
		"No valid rows remained after cleaning")
}
