package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/hibaMouhoub2/prospection-app/auth"
	"github.com/hibaMouhoub2/prospection-app/logging"
	"github.com/hibaMouhoub2/prospection-app/prospection"
	"github.com/hibaMouhoub2/prospection-app/structure"
)

// Error is the body of every error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

const (
	ErrCodeInvalidCredentials = "invalid_credentials"
	ErrCodeUnauthenticated    = "unauthenticated"
	ErrCodeForbidden          = "forbidden"
	ErrCodeNotFound           = "not_found"
	ErrCodeInvalidRequest     = "invalid_request"
	ErrCodeConflict           = "conflict"
	ErrCodeInvalidTransition  = "invalid_transition"
	ErrCodeInternal           = "internal_error"
	ErrCodeMethodNotAllow     = "method_not_allowed"
	ErrCodeUnavailable        = "unavailable"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{Status: status, Code: code, Message: message})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, message)
}

func writeUnauthenticated(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthenticated, "authentication required")
}

func writeInternalError(w http.ResponseWriter) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, "internal server error")
}

// writeServiceError maps domain errors to responses. Unknown errors are logged
// and answered with a generic 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, ErrCodeInvalidCredentials, "invalid email or password")
	case errors.Is(err, auth.ErrInvalidRefreshToken):
		writeError(w, http.StatusUnauthorized, ErrCodeUnauthenticated, "invalid refresh token")
	case errors.Is(err, prospection.ErrAccessDenied):
		writeError(w, http.StatusForbidden, ErrCodeForbidden, "access denied")
	case errors.Is(err, prospection.ErrNotFound), errors.Is(err, structure.ErrNotFound):
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "resource not found")
	case errors.Is(err, auth.ErrDuplicateEmail):
		writeError(w, http.StatusConflict, ErrCodeConflict, "email already registered")
	case errors.Is(err, prospection.ErrInvalidTransition):
		writeError(w, http.StatusConflict, ErrCodeInvalidTransition, "status transition not allowed")
	case errors.Is(err, auth.ErrWeakPassword),
		errors.Is(err, auth.ErrMissingFields),
		errors.Is(err, auth.ErrInvalidRole),
		errors.Is(err, auth.ErrPlacementRequired),
		errors.Is(err, auth.ErrUnknownPlacement),
		errors.Is(err, prospection.ErrInvalidInput),
		errors.Is(err, prospection.ErrInvalidAssignee):
		writeBadRequest(w, publicMessage(err))
	default:
		logging.From(r.Context()).Error("request failed", zap.Error(err))
		writeInternalError(w)
	}
}

// publicMessage drops the package prefix of a validation error.
func publicMessage(err error) string {
	msg := err.Error()
	if _, rest, ok := strings.Cut(msg, ": "); ok {
		return rest
	}
	return msg
}
