package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// ConversationHandler serves the conversation lifecycle routes.
type ConversationHandler struct {
	*Handler
}

// NewConversationHandler creates a new conversation handler.
func NewConversationHandler(base *Handler) *ConversationHandler {
	return &ConversationHandler{Handler: base}
}

// RegisterRoutes registers conversation routes.
func (h *ConversationHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/conversations", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)
		r.Put("/{id}/title", h.Rename)
		r.Delete("/{id}", h.Delete)
	})
}

// Create starts a new conversation, evicting the oldest one when the
// owner is at their retention cap.
func (h *ConversationHandler) Create(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	if owner == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	conv, err := h.sessions.CreateConversation(r.Context(), owner)
	if err != nil {
		slog.Error("failed to create conversation", "error", err, "owner_id", owner)
		Fail(w, err)
		return
	}

	JSON(w, http.StatusCreated, conv)
}

// List returns the owner's conversations, most recently updated first.
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	if owner == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	convs, err := h.sessions.ListConversations(r.Context(), owner)
	if err != nil {
		slog.Error("failed to list conversations", "error", err, "owner_id", owner)
		Fail(w, err)
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{"conversations": convs})
}

// Get returns the full message history of one conversation.
func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	if owner == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := chi.URLParam(r, "id")
	msgs, err := h.sessions.GetConversation(r.Context(), owner, id)
	if err != nil {
		Fail(w, err)
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"conversation_id": id,
		"messages":        msgs,
	})
}

// Rename updates a conversation title.
func (h *ConversationHandler) Rename(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	if owner == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var body struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.sessions.RenameConversation(r.Context(), owner, id, body.Title); err != nil {
		Fail(w, err)
		return
	}

	JSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// Delete removes a conversation and its messages.
func (h *ConversationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	if owner == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.sessions.DeleteConversation(r.Context(), owner, id); err != nil {
		Fail(w, err)
		return
	}

	JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
