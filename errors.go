package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/example/envelopes/internal/token"
)

// Error kinds surfaced by handlers and storage adapters.
var (
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrDuplicateEnvelope  = errors.New("envelope already exists")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrNotFound           = errors.New("not found")
	// ErrUnknownOwner is a foreign key failure: the token names a user the store does not have.
	ErrUnknownOwner = errors.New("envelope owner does not exist")
)

// validationError carries a client-facing message for malformed input.
type validationError struct{ msg string }

func (e *validationError) Error() string { return e.msg }

func invalid(msg string) error { return &validationError{msg: msg} }

// APIError represents a structured API error response
type APIError struct {
	Code    string `json:"error_code"`
	Message string `json:"error_message"`
	Details string `json:"details,omitempty"`
}

// writeError writes a structured error response
func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(APIError{
		Code:    code,
		Message: message,
	})
}

// classify maps an internal error onto the status, code and message the
// client sees. Expired and invalid tokens deliberately look the same.
func classify(err error) (int, string, string) {
	var ve *validationError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, "INVALID_REQUEST", ve.msg
	case errors.Is(err, ErrDuplicateEmail):
		return http.StatusConflict, "DUPLICATE_EMAIL", "Email already registered"
	case errors.Is(err, ErrDuplicateEnvelope):
		return http.StatusConflict, "DUPLICATE_ENVELOPE", "Envelope already exists for this user with the same name"
	case errors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid credentials"
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrUnknownOwner):
		return http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or expired access token"
	case errors.Is(err, token.ErrInvalidToken), errors.Is(err, token.ErrExpiredToken), errors.Is(err, token.ErrMissingClaim):
		return http.StatusUnauthorized, "INVALID_TOKEN", "Invalid or expired refresh token"
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", "No envelopes found for the user"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error"
	}
}

// writeAPIError logs err with its full cause and writes the collapsed form.
func (a *App) writeAPIError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, msg := classify(err)
	if status >= http.StatusInternalServerError {
		a.log.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "code", code, "error", err)
	} else {
		a.log.InfoContext(r.Context(), "request rejected", "path", r.URL.Path, "code", code, "error", err)
	}
	writeError(w, status, code, msg)
}
