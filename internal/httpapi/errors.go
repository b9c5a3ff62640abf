package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"neurod/internal/apperr"
	"neurod/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}

// writeJSON writes v with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
	}
}

// errorStatus maps err to a status and a client-safe message. Errors without
// a status are internal and their text is not echoed.
func errorStatus(err error) (int, string) {
	var he HTTPError
	if errors.As(err, &he) {
		return he.StatusCode(), apperr.PublicMessage(err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusInternalServerError, "request timed out"
	}
	return http.StatusInternalServerError, "internal error"
}

// writeError maps err, writes it and logs the outcome.
func writeError(w http.ResponseWriter, rl *requestLog, err error) {
	status, msg := errorStatus(err)
	writeJSONError(w, status, msg)
	rl.end(status, err)
}

var errUnsupportedMedia = errors.New("unsupported content type")
