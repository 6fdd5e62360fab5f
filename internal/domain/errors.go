package domain

import (
	"encoding/json"
	"net/http"
)

// ErrorCode represents a specific error condition surfaced to clients.
type ErrorCode string

const (
	ErrInvalidAPIKey    ErrorCode = "InvalidAPIKey"       // HTTP 401
	ErrInvalidRole      ErrorCode = "InvalidRole"         // HTTP 400, unknown role segment in path
	ErrBadRequest       ErrorCode = "BadRequest"          // HTTP 400, malformed payload
	ErrNotFound         ErrorCode = "NotFound"            // HTTP 404
	ErrMethodNotAllowed ErrorCode = "MethodNotAllowed"    // HTTP 405
	ErrInternal         ErrorCode = "InternalServerError" // HTTP 500
)

// ErrorResponse is the standard error format returned to clients over HTTP
// or as a websocket error frame payload.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
}

// NewErrorResponse creates a new ErrorResponse struct.
func NewErrorResponse(code ErrorCode, message string, details string) ErrorResponse {
	return ErrorResponse{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// WriteJSON sends an ErrorResponse as JSON with the given HTTP status code.
func (er ErrorResponse) WriteJSON(w http.ResponseWriter, httpStatusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatusCode)
	json.NewEncoder(w).Encode(er) // best effort
}
