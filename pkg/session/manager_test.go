package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/barekit/lingua/pkg/artifact"
	cacheinmemory "github.com/barekit/lingua/pkg/cache/inmemory"
	"github.com/barekit/lingua/pkg/chat"
	"github.com/barekit/lingua/pkg/llm"
	"github.com/barekit/lingua/pkg/speech"
	storeinmemory "github.com/barekit/lingua/pkg/store/inmemory"
)

type mockProvider struct {
	response string
	err      error
	calls    [][]llm.Message
}

func (m *mockProvider) Chat(ctx context.Context, messages []llm.Message, params llm.Params) (string, error) {
	m.calls = append(m.calls, messages)
	if m.err != nil {
		return "", m.err
	}
	return m.response, nil
}

type mockTranscriber struct {
	text string
	err  error
}

func (m *mockTranscriber) Transcribe(ctx context.Context, audio []byte, format string) (string, error) {
	return m.text, m.err
}

type mockSynthesizer struct {
	audio []byte
	err   error
}

func (m *mockSynthesizer) Synthesize(ctx context.Context, text, language string) ([]byte, error) {
	return m.audio, m.err
}

func newTestManager(provider llm.Provider, opts ...Option) (*Manager, *storeinmemory.InMemory, *cacheinmemory.InMemory) {
	st := storeinmemory.New()
	ca := cacheinmemory.New()
	return New(st, ca, provider, opts...), st, ca
}

func TestQuery_PersistsTurn(t *testing.T) {
	mock := &mockProvider{response: "¡Hola, Maria! ¿Cómo estás?"}
	m, _, ca := newTestManager(mock)
	ctx := context.Background()

	conv, err := m.CreateConversation(ctx, "user-1")
	if err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}

	res, err := m.Query(ctx, QueryRequest{
		OwnerID:        "user-1",
		OwnerName:      "Maria",
		ConversationID: conv.ID,
		Question:       "Hola",
	})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if res.Response != mock.response {
		t.Errorf("Expected %q, got %q", mock.response, res.Response)
	}

	history, err := m.GetConversation(ctx, "user-1", conv.ID)
	if err != nil {
		t.Fatalf("GetConversation failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(history))
	}
	if history[0].IsBot || history[0].Content != "Hola" {
		t.Errorf("Expected user turn first, got %+v", history[0])
	}
	if !history[1].IsBot || history[1].Content != mock.response {
		t.Errorf("Expected bot turn second, got %+v", history[1])
	}
	// The pair shares a timestamp; the sequence numbers keep it ordered on
	// stores that cannot rely on insertion order.
	if !history[0].CreatedAt.Equal(history[1].CreatedAt) {
		t.Errorf("Expected the turn pair to share a timestamp, got %v and %v", history[0].CreatedAt, history[1].CreatedAt)
	}
	if history[0].Seq >= history[1].Seq {
		t.Errorf("Expected user turn sequence %d below bot turn sequence %d", history[0].Seq, history[1].Seq)
	}

	cached, ok, err := ca.Get(ctx, "user-1", conv.ID)
	if err != nil || !ok {
		t.Fatalf("Expected cached session entry, ok=%v err=%v", ok, err)
	}
	if len(cached) != 2 {
		t.Errorf("Expected 2 cached messages, got %d", len(cached))
	}
}

func TestQuery_BuildsPersonalizedWindow(t *testing.T) {
	mock := &mockProvider{response: "¡Hola!"}
	m, _, _ := newTestManager(mock)
	ctx := context.Background()

	if err := m.UpdatePreferences(ctx, chat.Preferences{
		OwnerID:          "user-1",
		TargetLanguage:   "Spanish",
		ProficiencyLevel: "beginner",
	}); err != nil {
		t.Fatalf("UpdatePreferences failed: %v", err)
	}

	conv, err := m.CreateConversation(ctx, "user-1")
	if err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}

	if _, err := m.Query(ctx, QueryRequest{
		OwnerID:        "user-1",
		OwnerName:      "Maria",
		ConversationID: conv.ID,
		Question:       "Hola",
	}); err != nil {
		t.Fatalf("Query failed: %v", err)
	}

	if len(mock.calls) != 1 {
		t.Fatalf("Expected 1 provider call, got %d", len(mock.calls))
	}
	messages := mock.calls[0]
	if len(messages) != 3 {
		t.Fatalf("Expected 3 outbound messages on first turn, got %d", len(messages))
	}
	if messages[0].Role != llm.RoleSystem || messages[1].Role != llm.RoleSystem {
		t.Errorf("Expected two leading system messages, got %q and %q", messages[0].Role, messages[1].Role)
	}
	if !strings.Contains(messages[1].Content, "Spanish") || !strings.Contains(messages[1].Content, "beginner") {
		t.Errorf("Expected cadence to carry preferences, got %q", messages[1].Content)
	}
	if last := messages[2]; last.Role != llm.RoleUser || last.Content != "Hola" {
		t.Errorf("Expected query last, got %+v", last)
	}

	// Second turn carries the first turn as history.
	if _, err := m.Query(ctx, QueryRequest{
		OwnerID:        "user-1",
		OwnerName:      "Maria",
		ConversationID: conv.ID,
		Question:       "¿Qué significa gracias?",
	}); err != nil {
		t.Fatalf("Second query failed: %v", err)
	}
	messages = mock.calls[1]
	if len(messages) != 5 {
		t.Fatalf("Expected 5 outbound messages on second turn, got %d", len(messages))
	}
	if messages[2].Role != llm.RoleUser || messages[3].Role != llm.RoleAssistant {
		t.Errorf("Expected history roles user then assistant, got %q and %q", messages[2].Role, messages[3].Role)
	}
}

func TestQuery_FallbackOnProviderError(t *testing.T) {
	mock := &mockProvider{err: errors.New("rate limited")}
	m, _, _ := newTestManager(mock)
	ctx := context.Background()

	conv, err := m.CreateConversation(ctx, "user-1")
	if err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}

	res, err := m.Query(ctx, QueryRequest{
		OwnerID:        "user-1",
		ConversationID: conv.ID,
		Question:       "Hola",
	})
	if err != nil {
		t.Fatalf("Expected fallback instead of error, got %v", err)
	}
	if res.Response != FallbackResponse {
		t.Errorf("Expected fallback response, got %q", res.Response)
	}

	history, err := m.GetConversation(ctx, "user-1", conv.ID)
	if err != nil {
		t.Fatalf("GetConversation failed: %v", err)
	}
	if len(history) != 2 || history[1].Content != FallbackResponse {
		t.Errorf("Expected persisted fallback turn, got %+v", history)
	}
	if strings.Contains(history[1].Content, "rate limited") {
		t.Errorf("Provider error leaked into the persisted turn: %q", history[1].Content)
	}
}

func TestQuery_Validation(t *testing.T) {
	m, _, _ := newTestManager(&mockProvider{response: "ok"})
	ctx := context.Background()

	conv, err := m.CreateConversation(ctx, "user-1")
	if err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}

	cases := []QueryRequest{
		{OwnerID: "user-1", ConversationID: conv.ID, Question: "   "},
		{OwnerID: "user-1", ConversationID: "", Question: "Hola"},
	}
	for _, req := range cases {
		if _, err := m.Query(ctx, req); !errors.Is(err, ErrValidation) {
			t.Errorf("Expected ErrValidation for %+v, got %v", req, err)
		}
	}
}

func TestQuery_UnknownConversation(t *testing.T) {
	m, _, _ := newTestManager(&mockProvider{response: "ok"})
	ctx := context.Background()

	if _, err := m.Query(ctx, QueryRequest{
		OwnerID:        "user-1",
		ConversationID: "missing",
		Question:       "Hola",
	}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestQuery_OtherOwnersConversation(t *testing.T) {
	m, _, _ := newTestManager(&mockProvider{response: "ok"})
	ctx := context.Background()

	conv, err := m.CreateConversation(ctx, "user-1")
	if err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}

	if _, err := m.Query(ctx, QueryRequest{
		OwnerID:        "user-2",
		ConversationID: conv.ID,
		Question:       "Hola",
	}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for foreign owner, got %v", err)
	}
}

func TestGetConversation_RebuildsCache(t *testing.T) {
	m, _, ca := newTestManager(&mockProvider{response: "ok"})
	ctx := context.Background()

	conv, err := m.CreateConversation(ctx, "user-1")
	if err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}
	if _, err := m.Query(ctx, QueryRequest{
		OwnerID: "user-1", ConversationID: conv.ID, Question: "Hola",
	}); err != nil {
		t.Fatalf("Query failed: %v", err)
	}

	before, err := m.GetConversation(ctx, "user-1", conv.ID)
	if err != nil {
		t.Fatalf("GetConversation failed: %v", err)
	}

	// Simulate a cache loss; the next read must rebuild from the store.
	if err := ca.Delete(ctx, "user-1", conv.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	after, err := m.GetConversation(ctx, "user-1", conv.ID)
	if err != nil {
		t.Fatalf("GetConversation after cache loss failed: %v", err)
	}
	if len(before) != len(after) {
		t.Fatalf("Rebuilt history differs in length: %d vs %d", len(before), len(after))
	}
	for i := range before {
		if before[i].ID != after[i].ID || before[i].Content != after[i].Content {
			t.Errorf("Rebuilt history differs at %d: %+v vs %+v", i, before[i], after[i])
		}
	}

	if _, ok, err := ca.Get(ctx, "user-1", conv.ID); err != nil || !ok {
		t.Errorf("Expected write-through repair to refill the cache, ok=%v err=%v", ok, err)
	}
}

func TestCreateConversation_EvictsOldest(t *testing.T) {
	m, _, _ := newTestManager(&mockProvider{response: "ok"}, WithRetentionCap(3))
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		conv, err := m.CreateConversation(ctx, "user-1")
		if err != nil {
			t.Fatalf("CreateConversation %d failed: %v", i, err)
		}
		ids = append(ids, conv.ID)
		time.Sleep(2 * time.Millisecond)
	}

	newest, err := m.CreateConversation(ctx, "user-1")
	if err != nil {
		t.Fatalf("CreateConversation over cap failed: %v", err)
	}

	convs, err := m.ListConversations(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListConversations failed: %v", err)
	}
	if len(convs) != 3 {
		t.Fatalf("Expected 3 conversations after eviction, got %d", len(convs))
	}
	for _, conv := range convs {
		if conv.ID == ids[0] {
			t.Errorf("Expected oldest conversation %s to be evicted", ids[0])
		}
	}
	if _, err := m.GetConversation(ctx, "user-1", newest.ID); err != nil {
		t.Errorf("Expected newest conversation to survive, got %v", err)
	}
	if _, err := m.GetConversation(ctx, "user-1", ids[0]); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected evicted conversation to be gone, got %v", err)
	}
}

func TestCreateConversation_NoEvictionUnderCap(t *testing.T) {
	m, _, _ := newTestManager(&mockProvider{response: "ok"}, WithRetentionCap(3))
	ctx := context.Background()

	first, err := m.CreateConversation(ctx, "user-1")
	if err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}
	if _, err := m.CreateConversation(ctx, "user-1"); err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}

	if _, err := m.GetConversation(ctx, "user-1", first.ID); err != nil {
		t.Errorf("Expected no eviction under the cap, got %v", err)
	}
}

func TestDeleteConversation_DropsSessionEntry(t *testing.T) {
	m, _, ca := newTestManager(&mockProvider{response: "ok"})
	ctx := context.Background()

	conv, err := m.CreateConversation(ctx, "user-1")
	if err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}
	if _, err := m.Query(ctx, QueryRequest{
		OwnerID: "user-1", ConversationID: conv.ID, Question: "Hola",
	}); err != nil {
		t.Fatalf("Query failed: %v", err)
	}

	if err := m.DeleteConversation(ctx, "user-1", conv.ID); err != nil {
		t.Fatalf("DeleteConversation failed: %v", err)
	}

	if _, err := m.GetConversation(ctx, "user-1", conv.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
	if _, ok, _ := ca.Get(ctx, "user-1", conv.ID); ok {
		t.Errorf("Expected session entry to be dropped with the conversation")
	}
}

// failingDeleteCache refuses Delete, as a flaky backend would.
type failingDeleteCache struct {
	*cacheinmemory.InMemory
}

func (c *failingDeleteCache) Delete(ctx context.Context, ownerID, conversationID string) error {
	return errors.New("connection reset")
}

func TestDeleteConversation_SurvivesCacheFailure(t *testing.T) {
	st := storeinmemory.New()
	ca := &failingDeleteCache{InMemory: cacheinmemory.New()}
	m := New(st, ca, &mockProvider{response: "ok"})
	ctx := context.Background()

	conv, err := m.CreateConversation(ctx, "user-1")
	if err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}

	// The store delete succeeded, so the conversation is gone regardless of
	// what the cache did.
	if err := m.DeleteConversation(ctx, "user-1", conv.ID); err != nil {
		t.Fatalf("Expected delete to succeed despite the cache failure, got %v", err)
	}
	if _, err := m.GetConversation(ctx, "user-1", conv.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
}

func TestRenameConversation(t *testing.T) {
	m, _, _ := newTestManager(&mockProvider{response: "ok"})
	ctx := context.Background()

	conv, err := m.CreateConversation(ctx, "user-1")
	if err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}

	if err := m.RenameConversation(ctx, "user-1", conv.ID, "  "); !errors.Is(err, ErrValidation) {
		t.Errorf("Expected ErrValidation for blank title, got %v", err)
	}

	if err := m.RenameConversation(ctx, "user-1", conv.ID, "Ordering food"); err != nil {
		t.Fatalf("RenameConversation failed: %v", err)
	}
	convs, err := m.ListConversations(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListConversations failed: %v", err)
	}
	if len(convs) != 1 || convs[0].Title != "Ordering food" {
		t.Errorf("Expected renamed conversation, got %+v", convs)
	}
}

func TestPreferences_DefaultsWhenUnset(t *testing.T) {
	m, _, _ := newTestManager(&mockProvider{response: "ok"})

	prefs, err := m.Preferences(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Preferences failed: %v", err)
	}
	if prefs.TargetLanguage != chat.DefaultLanguage {
		t.Errorf("Expected default language %q, got %q", chat.DefaultLanguage, prefs.TargetLanguage)
	}
	if prefs.ProficiencyLevel != chat.DefaultProficiency {
		t.Errorf("Expected default proficiency %q, got %q", chat.DefaultProficiency, prefs.ProficiencyLevel)
	}
	if prefs.DailyPracticeTime != chat.DefaultPracticeMinutes {
		t.Errorf("Expected default practice time %d, got %d", chat.DefaultPracticeMinutes, prefs.DailyPracticeTime)
	}
}

func TestUpdatePreferences_FillsDefaults(t *testing.T) {
	m, _, _ := newTestManager(&mockProvider{response: "ok"})
	ctx := context.Background()

	if err := m.UpdatePreferences(ctx, chat.Preferences{OwnerID: ""}); !errors.Is(err, ErrValidation) {
		t.Errorf("Expected ErrValidation for missing owner, got %v", err)
	}

	if err := m.UpdatePreferences(ctx, chat.Preferences{OwnerID: "user-1", TargetLanguage: "French"}); err != nil {
		t.Fatalf("UpdatePreferences failed: %v", err)
	}
	prefs, err := m.Preferences(ctx, "user-1")
	if err != nil {
		t.Fatalf("Preferences failed: %v", err)
	}
	if prefs.TargetLanguage != "French" {
		t.Errorf("Expected French, got %q", prefs.TargetLanguage)
	}
	if prefs.ProficiencyLevel != chat.DefaultProficiency {
		t.Errorf("Expected default proficiency to be filled, got %q", prefs.ProficiencyLevel)
	}
	if prefs.LearningGoals == nil || prefs.PreferredTopics == nil {
		t.Errorf("Expected empty slices instead of nil, got %+v", prefs)
	}
}

func TestQuery_VoiceOutput(t *testing.T) {
	artifacts, err := artifact.NewManager(t.TempDir(), time.Hour)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	m, _, _ := newTestManager(&mockProvider{response: "¡Hola!"},
		WithSpeech(&mockSynthesizer{audio: []byte("mp3-bytes")}, artifacts))
	ctx := context.Background()

	conv, err := m.CreateConversation(ctx, "user-1")
	if err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}

	res, err := m.Query(ctx, QueryRequest{
		OwnerID:        "user-1",
		ConversationID: conv.ID,
		Question:       "Hola",
		VoiceOutput:    true,
	})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if res.AudioName == "" {
		t.Fatal("Expected an audio artifact name")
	}

	data, err := m.FetchAudio(res.AudioName)
	if err != nil {
		t.Fatalf("FetchAudio failed: %v", err)
	}
	if string(data) != "mp3-bytes" {
		t.Errorf("Unexpected audio bytes: %q", data)
	}
}

func TestQuery_VoiceOutputFailureServesText(t *testing.T) {
	artifacts, err := artifact.NewManager(t.TempDir(), time.Hour)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	m, _, _ := newTestManager(&mockProvider{response: "¡Hola!"},
		WithSpeech(&mockSynthesizer{err: fmt.Errorf("tts down")}, artifacts))
	ctx := context.Background()

	conv, err := m.CreateConversation(ctx, "user-1")
	if err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}

	res, err := m.Query(ctx, QueryRequest{
		OwnerID:        "user-1",
		ConversationID: conv.ID,
		Question:       "Hola",
		VoiceOutput:    true,
	})
	if err != nil {
		t.Fatalf("Expected text-only result, got %v", err)
	}
	if res.AudioName != "" {
		t.Errorf("Expected no audio artifact on synthesis failure, got %q", res.AudioName)
	}
	if res.Response != "¡Hola!" {
		t.Errorf("Expected text response to survive, got %q", res.Response)
	}
}

func TestTranscribe(t *testing.T) {
	ctx := context.Background()

	m, _, _ := newTestManager(&mockProvider{response: "ok"})
	if _, err := m.Transcribe(ctx, []byte("audio"), "webm"); !errors.Is(err, ErrUpstream) {
		t.Errorf("Expected ErrUpstream without a transcriber, got %v", err)
	}

	m, _, _ = newTestManager(&mockProvider{response: "ok"},
		WithTranscription(&mockTranscriber{text: "hola como estas"}, nil))

	if _, err := m.Transcribe(ctx, nil, "webm"); !errors.Is(err, ErrValidation) {
		t.Errorf("Expected ErrValidation for empty audio, got %v", err)
	}

	text, err := m.Transcribe(ctx, []byte("audio"), "webm")
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if text != "hola como estas" {
		t.Errorf("Unexpected transcription: %q", text)
	}

	m, _, _ = newTestManager(&mockProvider{response: "ok"},
		WithTranscription(&mockTranscriber{err: speech.ErrAmbiguous}, nil))
	if _, err := m.Transcribe(ctx, []byte("audio"), "webm"); !errors.Is(err, speech.ErrAmbiguous) {
		t.Errorf("Expected ErrAmbiguous passthrough, got %v", err)
	}

	m, _, _ = newTestManager(&mockProvider{response: "ok"},
		WithTranscription(&mockTranscriber{err: errors.New("provider down")}, nil))
	if _, err := m.Transcribe(ctx, []byte("audio"), "webm"); !errors.Is(err, ErrUpstream) {
		t.Errorf("Expected ErrUpstream wrap, got %v", err)
	}
}
