package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tunegraph/tunegraph/internal/repositories"
	"github.com/tunegraph/tunegraph/internal/shared"
)

// errorBody is the JSON error envelope. Code is machine-readable and stable;
// Message is human-readable. Raw upstream payloads never appear here.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError maps a taxonomy error onto an HTTP status and stable code.
func writeError(w http.ResponseWriter, err error) {
	status, code := http.StatusInternalServerError, "INTERNAL_ERROR"

	switch {
	case errors.Is(err, shared.ErrNotAuthenticated):
		status, code = http.StatusUnauthorized, "UNAUTHENTICATED"
	case errors.Is(err, shared.ErrAuthFailed):
		status, code = http.StatusUnauthorized, "UPSTREAM_AUTH"
	case errors.Is(err, shared.ErrRefreshFailed):
		status, code = http.StatusUnauthorized, "REFRESH_FAILED"
	case errors.Is(err, shared.ErrTokenExpired):
		status, code = http.StatusUnauthorized, "UPSTREAM_AUTH"
	case errors.Is(err, shared.ErrNotFound), errors.Is(err, repositories.ErrProfileNotFound):
		status, code = http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, shared.ErrInvalidResponse):
		status, code = http.StatusBadGateway, "INVALID_RESPONSE"
	}

	writeJSON(w, status, errorResponse{Error: errorBody{Code: code, Message: err.Error()}})
}
