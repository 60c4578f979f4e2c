package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/homectl-core/internal/device"
	"github.com/nerrad567/homectl-core/internal/integration"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest  = "bad_request"
	ErrCodeNotFound    = "not_found"
	ErrCodeUnprocessed = "unprocessable"
	ErrCodeInternal    = "internal_error"
	ErrCodeValidation  = "validation_error"
	ErrCodeUnavailable = "unavailable"
	ErrCodeBackend     = "backend_error"
	ErrCodeTimeout     = "backend_timeout"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeDispatchError maps a registry dispatch error onto a status code.
func writeDispatchError(w http.ResponseWriter, err error) {
	status, code := dispatchStatus(err)
	writeError(w, status, code, err.Error())
}

func dispatchStatus(err error) (int, string) {
	switch {
	case errors.Is(err, integration.ErrNotFound):
		return http.StatusNotFound, ErrCodeNotFound
	case errors.Is(err, device.ErrInvalidDevice),
		errors.Is(err, device.ErrInvalidState),
		errors.Is(err, device.ErrInvalidColor):
		return http.StatusBadRequest, ErrCodeValidation
	case errors.Is(err, integration.ErrUnknownDevice),
		errors.Is(err, integration.ErrUnsupportedAction):
		return http.StatusUnprocessableEntity, ErrCodeUnprocessed
	case errors.Is(err, integration.ErrCallTimeout):
		return http.StatusGatewayTimeout, ErrCodeTimeout
	default:
		return http.StatusBadGateway, ErrCodeBackend
	}
}
