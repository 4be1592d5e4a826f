package handler

// RESPONSE HELPERS:
// These functions standardise how we send JSON responses and errors.
//
// CONSISTENT ERROR FORMAT:
// Every error response from our API has the same shape:
//   {"error": "not_found", "message": "snippet not found with id abc123"}
//
// The frontend always knows what fields to expect, whatever the status.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/snippet-vault/internal/apperror"
)

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`   // machine-readable error type, e.g. "not_found"
	Message string `json:"message"` // human-readable description
}

// writeJSON sends a JSON response with the given status code.
//
// HEADER ORDER MATTERS:
// Headers and status must be set BEFORE the body is written. Once Encode
// calls w.Write, the headers are on the wire and later changes are ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// headers are already sent, logging is all we can do
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// errorStatus maps a domain sentinel to its HTTP status and error type.
//
// QuotaExceeded and Conflict share 409 but keep distinct types, so the
// client can tell "you are full" from "that already exists".
var errorStatus = []struct {
	sentinel error
	status   int
	kind     string
}{
	{apperror.ErrValidation, http.StatusBadRequest, "validation_error"},
	{apperror.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
	{apperror.ErrForbidden, http.StatusForbidden, "forbidden"},
	{apperror.ErrNotFound, http.StatusNotFound, "not_found"},
	{apperror.ErrQuotaExceeded, http.StatusConflict, "quota_exceeded"},
	{apperror.ErrConflict, http.StatusConflict, "conflict"},
	{apperror.ErrUnavailable, http.StatusServiceUnavailable, "store_unavailable"},
}

// writeError maps a domain error to the appropriate HTTP status code and sends it.
//
// WHY HERE AND NOT IN THE SERVICE?
// The service layer does not know about HTTP. The MCP tools map the same
// sentinels to tool errors instead of status codes.
//
// errors.Is() walks the whole chain, so a service error like
//
//	fmt.Errorf("creating snippet: %w", apperror.Unavailable(...))
//
// still matches ErrUnavailable.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		for _, m := range errorStatus {
			if errors.Is(err, m.sentinel) {
				if m.status >= http.StatusInternalServerError {
					logger.Error("store unavailable", slog.String("error", err.Error()))
				}
				writeJSON(w, m.status, ErrorResponse{Error: m.kind, Message: appErr.Message})
				return
			}
		}
	}

	// Unknown error: log the detail, return a generic 500.
	// NEVER expose internal error details to the client. The raw message
	// might contain SQL, file paths or hostnames.
	logger.Error("internal error", slog.String("error", err.Error()))
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}
