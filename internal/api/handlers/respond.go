package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kwiatekh/docpanel-be/internal/services"
)

// statusFromErr maps the service error taxonomy onto HTTP status codes.
// Anything unrecognized is a storage-level failure.
func statusFromErr(err error) int {
	switch {
	case errors.Is(err, services.ErrValidation),
		errors.Is(err, services.ErrInvalidOrExpiredToken),
		errors.Is(err, services.ErrInsufficientBalance):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrInvalidAccessKey),
		errors.Is(err, services.ErrAccountDisabled):
		return http.StatusForbidden
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrUsernameTaken),
		errors.Is(err, services.ErrDuplicateKey):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// serviceError writes an error response for a service failure. Storage
// errors are not echoed to the client.
func serviceError(w http.ResponseWriter, err error) {
	status := statusFromErr(err)
	if status == http.StatusInternalServerError {
		http.Error(w, "Internal server error", status)
		return
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
