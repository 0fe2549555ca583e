// Package api provides HTTP handlers for the conversation service.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/barekit/lingua/pkg/session"
)

// OwnerHeader carries the authenticated owner id, set by the fronting
// auth layer.
const OwnerHeader = "X-Owner-ID"

// OwnerNameHeader optionally carries the owner's display name.
const OwnerNameHeader = "X-Owner-Name"

// Handler provides common handler utilities.
type Handler struct {
	sessions *session.Manager
}

// NewHandler creates a new Handler.
func NewHandler(sessions *session.Manager) *Handler {
	return &Handler{sessions: sessions}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// Fail maps a service error onto an HTTP status and writes it.
func Fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, session.ErrValidation):
		Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, session.ErrUpstream):
		Error(w, http.StatusBadGateway, err.Error())
	default:
		Error(w, http.StatusInternalServerError, err.Error())
	}
}

func ownerID(r *http.Request) string {
	return r.Header.Get(OwnerHeader)
}

func ownerName(r *http.Request) string {
	if name := r.Header.Get(OwnerNameHeader); name != "" {
		return name
	}
	return "there"
}
