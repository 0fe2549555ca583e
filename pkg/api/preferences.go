package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/barekit/lingua/pkg/chat"
)

// PreferenceHandler serves the learning preference routes.
type PreferenceHandler struct {
	*Handler
}

// NewPreferenceHandler creates a new preference handler.
func NewPreferenceHandler(base *Handler) *PreferenceHandler {
	return &PreferenceHandler{Handler: base}
}

// RegisterRoutes registers preference routes.
func (h *PreferenceHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/preferences", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Put("/", h.Update)
	})
}

// Get returns the owner's preferences, falling back to defaults when
// none are stored.
func (h *PreferenceHandler) Get(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	if owner == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	prefs, err := h.sessions.Preferences(r.Context(), owner)
	if err != nil {
		Fail(w, err)
		return
	}

	JSON(w, http.StatusOK, prefs)
}

// Update replaces the owner's preferences.
func (h *PreferenceHandler) Update(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	if owner == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var prefs chat.Preferences
	if err := json.NewDecoder(r.Body).Decode(&prefs); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	prefs.OwnerID = owner

	if err := h.sessions.UpdatePreferences(r.Context(), prefs); err != nil {
		Fail(w, err)
		return
	}

	JSON(w, http.StatusOK, map[string]string{"status": "updated"})
}
