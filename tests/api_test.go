package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/barekit/lingua/pkg/api"
	cacheinmemory "github.com/barekit/lingua/pkg/cache/inmemory"
	"github.com/barekit/lingua/pkg/chat"
	"github.com/barekit/lingua/pkg/llm"
	"github.com/barekit/lingua/pkg/session"
	"github.com/barekit/lingua/pkg/speech"
	storeinmemory "github.com/barekit/lingua/pkg/store/inmemory"
)

type mockProvider struct {
	response string
}

func (m *mockProvider) Chat(ctx context.Context, messages []llm.Message, params llm.Params) (string, error) {
	return m.response, nil
}

type mockTranscriber struct {
	text string
	err  error
}

func (m *mockTranscriber) Transcribe(ctx context.Context, audio []byte, format string) (string, error) {
	return m.text, m.err
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	sessions := session.New(storeinmemory.New(), cacheinmemory.New(), &mockProvider{response: "¡Hola! ¿Cómo estás?"})
	base := api.NewHandler(sessions)

	r := chi.NewRouter()
	api.NewConversationHandler(base).RegisterRoutes(r)
	api.NewQueryHandler(base).RegisterRoutes(r)
	api.NewPreferenceHandler(base).RegisterRoutes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url string, body interface{}, out interface{}) int {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
	}

	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("Failed to build request: %v", err)
	}
	req.Header.Set(api.OwnerHeader, "user-1")
	req.Header.Set(api.OwnerNameHeader, "Maria")
	req.Header.Set("Content-Type", "application/json")

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer res.Body.Close()

	if out != nil {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
	}
	return res.StatusCode
}

func TestConversationFlow(t *testing.T) {
	srv := newTestServer(t)

	// Create a conversation.
	var conv chat.Conversation
	if code := do(t, http.MethodPost, srv.URL+"/api/conversations/", nil, &conv); code != http.StatusCreated {
		t.Fatalf("Create: expected 201, got %d", code)
	}
	if conv.Title != "New Chat" {
		t.Errorf("Expected default title, got %q", conv.Title)
	}

	// Ask a question.
	var queryRes struct {
		Response       string `json:"response"`
		ConversationID string `json:"conversation_id"`
	}
	code := do(t, http.MethodPost, srv.URL+"/api/query", map[string]interface{}{
		"conversation_id": conv.ID,
		"question":        "Hola",
	}, &queryRes)
	if code != http.StatusOK {
		t.Fatalf("Query: expected 200, got %d", code)
	}
	if queryRes.Response != "¡Hola! ¿Cómo estás?" {
		t.Errorf("Unexpected response: %q", queryRes.Response)
	}

	// History holds both turns.
	var histRes struct {
		Messages []chat.Message `json:"messages"`
	}
	if code := do(t, http.MethodGet, srv.URL+"/api/conversations/"+conv.ID, nil, &histRes); code != http.StatusOK {
		t.Fatalf("Get: expected 200, got %d", code)
	}
	if len(histRes.Messages) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(histRes.Messages))
	}

	// Rename.
	if code := do(t, http.MethodPut, srv.URL+"/api/conversations/"+conv.ID+"/title",
		map[string]string{"title": "Greetings"}, nil); code != http.StatusOK {
		t.Fatalf("Rename: expected 200, got %d", code)
	}
	var listRes struct {
		Conversations []chat.Conversation `json:"conversations"`
	}
	if code := do(t, http.MethodGet, srv.URL+"/api/conversations/", nil, &listRes); code != http.StatusOK {
		t.Fatalf("List: expected 200, got %d", code)
	}
	if len(listRes.Conversations) != 1 || listRes.Conversations[0].Title != "Greetings" {
		t.Errorf("Unexpected list: %+v", listRes.Conversations)
	}

	// Delete.
	if code := do(t, http.MethodDelete, srv.URL+"/api/conversations/"+conv.ID, nil, nil); code != http.StatusOK {
		t.Fatalf("Delete: expected 200, got %d", code)
	}
	if code := do(t, http.MethodGet, srv.URL+"/api/conversations/"+conv.ID, nil, nil); code != http.StatusNotFound {
		t.Errorf("Get after delete: expected 404, got %d", code)
	}
}

func TestQueryValidation(t *testing.T) {
	srv := newTestServer(t)

	code := do(t, http.MethodPost, srv.URL+"/api/query", map[string]interface{}{
		"conversation_id": "",
		"question":        "Hola",
	}, nil)
	if code != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing conversation id, got %d", code)
	}

	code = do(t, http.MethodPost, srv.URL+"/api/query", map[string]interface{}{
		"conversation_id": "missing",
		"question":        "Hola",
	}, nil)
	if code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown conversation, got %d", code)
	}
}

func TestPreferencesRoundTrip(t *testing.T) {
	srv := newTestServer(t)

	// Defaults before anything is stored.
	var prefs chat.Preferences
	if code := do(t, http.MethodGet, srv.URL+"/api/preferences/", nil, &prefs); code != http.StatusOK {
		t.Fatalf("Get: expected 200, got %d", code)
	}
	if prefs.TargetLanguage != chat.DefaultLanguage {
		t.Errorf("Expected default language, got %q", prefs.TargetLanguage)
	}

	if code := do(t, http.MethodPut, srv.URL+"/api/preferences/", chat.Preferences{
		TargetLanguage:   "Spanish",
		ProficiencyLevel: "intermediate",
		LearningGoals:    []string{"travel"},
	}, nil); code != http.StatusOK {
		t.Fatalf("Update: expected 200, got %d", code)
	}

	if code := do(t, http.MethodGet, srv.URL+"/api/preferences/", nil, &prefs); code != http.StatusOK {
		t.Fatalf("Get: expected 200, got %d", code)
	}
	if prefs.TargetLanguage != "Spanish" || prefs.ProficiencyLevel != "intermediate" {
		t.Errorf("Unexpected preferences: %+v", prefs)
	}
}

func TestUnauthorizedWithoutOwner(t *testing.T) {
	srv := newTestServer(t)

	res, err := http.Post(srv.URL+"/api/conversations/", "application/json", nil)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected 401 without owner header, got %d", res.StatusCode)
	}
}

func TestTranscribeAmbiguousAudioReturnsText(t *testing.T) {
	sessions := session.New(storeinmemory.New(), cacheinmemory.New(),
		&mockProvider{response: "ok"},
		session.WithTranscription(&mockTranscriber{err: speech.ErrAmbiguous}, nil))
	base := api.NewHandler(sessions)

	r := chi.NewRouter()
	api.NewQueryHandler(base).RegisterRoutes(r)

	srv := httptest.NewServer(r)
	defer srv.Close()

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("audio", "clip.webm")
	if err != nil {
		t.Fatalf("Failed to build form: %v", err)
	}
	if _, err := part.Write([]byte("not really audio")); err != nil {
		t.Fatalf("Failed to write form: %v", err)
	}
	form.Close()

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/transcribe", &buf)
	if err != nil {
		t.Fatalf("Failed to build request: %v", err)
	}
	req.Header.Set(api.OwnerHeader, "user-1")
	req.Header.Set("Content-Type", form.FormDataContentType())

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer res.Body.Close()

	// Unintelligible audio is a conversational outcome, not an HTTP error.
	if res.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", res.StatusCode)
	}
	var body struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if body.Text == "" || !strings.Contains(body.Text, "try again") {
		t.Errorf("Expected an apologetic reply in the text field, got %q", body.Text)
	}
}

func TestRetentionCapOverHTTP(t *testing.T) {
	sessions := session.New(storeinmemory.New(), cacheinmemory.New(),
		&mockProvider{response: "ok"}, session.WithRetentionCap(2))
	base := api.NewHandler(sessions)

	r := chi.NewRouter()
	api.NewConversationHandler(base).RegisterRoutes(r)

	srv := httptest.NewServer(r)
	defer srv.Close()

	for i := 0; i < 4; i++ {
		if code := do(t, http.MethodPost, srv.URL+"/api/conversations/", nil, nil); code != http.StatusCreated {
			t.Fatalf("Create %d: expected 201, got %d", i, code)
		}
	}

	var listRes struct {
		Conversations []chat.Conversation `json:"conversations"`
	}
	if code := do(t, http.MethodGet, srv.URL+"/api/conversations/", nil, &listRes); code != http.StatusOK {
		t.Fatalf("List: expected 200, got %d", code)
	}
	if len(listRes.Conversations) != 2 {
		t.Errorf("Expected count pinned at the cap, got %d", len(listRes.Conversations))
	}
}
