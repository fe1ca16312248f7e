// Package handler contains HTTP request handlers for the marketplace API.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/daleapp/dale-backend/internal/apperr"
)

// writeJSON is a helper that writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// decodeJSON reads a JSON request body into dst, rejecting unknown fields.
func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// respondError maps a service error onto an HTTP response.
//
// Response codes:
//
//	400 — validation failure (bad field, bad payload)
//	403 — caller is not allowed to act on the resource
//	404 — resource does not exist
//	409 — precondition raced away (seats taken, duplicate email)
//	422 — resource exists but its state forbids the operation
//	503 — transient infrastructure failure, safe to retry
//	500 — everything else
func respondError(w http.ResponseWriter, err error) {
	var (
		vErr apperr.ValidationError
		aErr apperr.AuthError
		nErr apperr.NotFoundError
		sErr apperr.StateError
		cErr apperr.ConflictError
	)
	switch {
	case errors.As(err, &vErr):
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":   "validation_error",
			"field":   vErr.Field,
			"message": vErr.Msg,
		})
	case errors.As(err, &aErr):
		writeJSON(w, http.StatusForbidden, map[string]string{
			"error":   "forbidden",
			"message": aErr.Msg,
		})
	case errors.As(err, &nErr):
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error":   "not_found",
			"message": nErr.Resource + " not found",
		})
	case errors.As(err, &sErr):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error":   "invalid_state",
			"message": sErr.Error(),
		})
	case errors.As(err, &cErr):
		writeJSON(w, http.StatusConflict, map[string]string{
			"error":   "conflict",
			"message": cErr.Msg,
		})
	case apperr.IsTransient(err):
		log.Printf("[handler] transient error: %v", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error":   "service_unavailable",
			"message": "Temporary backend failure. Please retry.",
		})
	default:
		log.Printf("[handler] unexpected error: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "internal_error",
		})
	}
}
