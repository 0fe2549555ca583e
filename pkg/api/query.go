package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/barekit/lingua/pkg/session"
	"github.com/barekit/lingua/pkg/speech"
)

// maxAudioUpload caps inbound audio uploads at 25 MiB, matching the
// transcription provider's own limit.
const maxAudioUpload = 25 << 20

// ambiguousAudioText stands in for the transcript when the provider could
// not make out the recording. Returned as regular text so the client shows
// it in the conversation instead of raising an error.
const ambiguousAudioText = "Sorry, I couldn't quite make out what you said. Could you try again?"

// QueryHandler serves the chat turn, audio and transcription routes.
type QueryHandler struct {
	*Handler
}

// NewQueryHandler creates a new query handler.
func NewQueryHandler(base *Handler) *QueryHandler {
	return &QueryHandler{Handler: base}
}

// RegisterRoutes registers query routes.
func (h *QueryHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/query", h.Query)
		r.Post("/transcribe", h.Transcribe)
		r.Get("/audio/{name}", h.Audio)
		r.Get("/topics", h.Topics)
	})
}

// Query submits one question against a conversation.
func (h *QueryHandler) Query(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	if owner == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var body struct {
		ConversationID string `json:"conversation_id"`
		Question       string `json:"question"`
		VoiceOutput    bool   `json:"voice_output"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.sessions.Query(r.Context(), session.QueryRequest{
		OwnerID:        owner,
		OwnerName:      ownerName(r),
		ConversationID: body.ConversationID,
		Question:       body.Question,
		VoiceOutput:    body.VoiceOutput,
	})
	if err != nil {
		Fail(w, err)
		return
	}

	resp := map[string]interface{}{
		"response":        res.Response,
		"conversation_id": res.ConversationID,
	}
	if res.AudioName != "" {
		resp["audio_url"] = "/api/audio/" + res.AudioName
	}
	JSON(w, http.StatusOK, resp)
}

// Transcribe accepts an uploaded audio clip and returns the recognized text.
func (h *QueryHandler) Transcribe(w http.ResponseWriter, r *http.Request) {
	if ownerID(r) == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := r.ParseMultipartForm(maxAudioUpload); err != nil {
		Error(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("audio")
	if err != nil {
		Error(w, http.StatusBadRequest, "missing audio file")
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(io.LimitReader(file, maxAudioUpload))
	if err != nil {
		Error(w, http.StatusBadRequest, "failed to read audio file")
		return
	}

	format := "webm"
	if idx := strings.LastIndex(header.Filename, "."); idx >= 0 {
		format = strings.ToLower(header.Filename[idx+1:])
	}

	text, err := h.sessions.Transcribe(r.Context(), audio, format)
	if errors.Is(err, speech.ErrAmbiguous) {
		text = ambiguousAudioText
	} else if err != nil {
		slog.Warn("transcription failed", "error", err, "format", format)
		Fail(w, err)
		return
	}

	JSON(w, http.StatusOK, map[string]string{"text": text})
}

// Audio serves a synthesized reply artifact.
func (h *QueryHandler) Audio(w http.ResponseWriter, r *http.Request) {
	if ownerID(r) == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	data, err := h.sessions.FetchAudio(chi.URLParam(r, "name"))
	if err != nil {
		Fail(w, err)
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		slog.Warn("failed to write audio response", "error", err)
	}
}

// Topics returns practice topic suggestions for the owner.
func (h *QueryHandler) Topics(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	if owner == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	snippets, err := h.sessions.SuggestTopics(r.Context(), owner)
	if err != nil {
		slog.Error("failed to suggest topics", "error", err, "owner_id", owner)
		Fail(w, err)
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{"topics": snippets})
}
