// Package api implements the request envelope: the error contract, request
// timeouts, payload schema validation, and idempotent replay.
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

// Error codes carried in the error envelope. The set is closed; handlers
// must not invent codes at call sites.
const (
	CodeValidationError     = "validation_error"
	CodeInvalidURL          = "invalid_url"
	CodeInvalidType         = "invalid_type"
	CodeInvalidIDs          = "invalid_ids"
	CodeMissingPayload      = "missing_payload"
	CodeUnauthorized        = "unauthorized"
	CodeInvalidToken        = "invalid_token"
	CodeNoProject           = "no_project"
	CodeNotFound            = "not_found"
	CodeUserExists          = "user_exists"
	CodeIdempotencyConflict = "idempotency_conflict"
	CodeRateLimited         = "rate_limited"
	CodeServerError         = "server_error"
)

// Error is a typed API error that knows its HTTP status and envelope code.
type Error struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Errorf builds an *Error with a formatted message.
func Errorf(status int, code, format string, args ...any) *Error {
	return &Error{Status: status, Code: code, Message: fmt.Sprintf(format, args...)}
}

type errorEnvelope struct {
	Err       Error  `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// WriteError writes the error envelope {error:{code,message},request_id}.
// The request id is taken from the X-Request-ID response header, set by the
// request-id middleware before any handler runs.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	env := errorEnvelope{
		Err:       Error{Status: status, Code: code, Message: message},
		RequestID: w.Header().Get("X-Request-ID"),
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

// WriteAPIError writes a typed *Error; any other error becomes a 500.
func WriteAPIError(w http.ResponseWriter, err error) {
	if apiErr, ok := err.(*Error); ok {
		WriteError(w, apiErr.Status, apiErr.Code, apiErr.Message)
		return
	}
	WriteInternal(w, err)
}

// WriteBadRequest writes a 400 with the given envelope code.
func WriteBadRequest(w http.ResponseWriter, code, message string) {
	if code == "" {
		code = CodeValidationError
	}
	WriteError(w, http.StatusBadRequest, code, message)
}

// WriteUnauthorized writes a 401 error response.
func WriteUnauthorized(w http.ResponseWriter, code, message string) {
	if code == "" {
		code = CodeUnauthorized
	}
	if message == "" {
		message = "authentication required"
	}
	WriteError(w, http.StatusUnauthorized, code, message)
}

// WriteForbidden writes a 403 error response.
func WriteForbidden(w http.ResponseWriter, message string) {
	if message == "" {
		message = "no project in scope"
	}
	WriteError(w, http.StatusForbidden, CodeNoProject, message)
}

// WriteNotFound writes a 404 error response.
func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeNotFound, message)
}

// WriteConflict writes a 409 error response.
func WriteConflict(w http.ResponseWriter, code, message string) {
	WriteError(w, http.StatusConflict, code, message)
}

// WriteTooManyRequests writes a 429 error response with Retry-After header.
func WriteTooManyRequests(w http.ResponseWriter, retryAfterSecs int) {
	w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfterSecs))
	WriteError(w, http.StatusTooManyRequests, CodeRateLimited, "rate limit exceeded, retry after the specified interval")
}

// WriteInternal writes a 500 error response.
// The err parameter is logged but NEVER exposed to the client.
func WriteInternal(w http.ResponseWriter, err error) {
	slog.Error("internal server error", "error", err, "request_id", w.Header().Get("X-Request-ID"))
	WriteError(w, http.StatusInternalServerError, CodeServerError, "an unexpected error occurred")
}

// WriteJSON writes a success response as JSON.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
