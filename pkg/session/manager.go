// Package session implements the conversation session lifecycle: it keeps a
// bounded, ordered message history per conversation, reconciles the session
// cache against the durable store, builds the context window for each model
// call and enforces the per-owner retention cap.
package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/barekit/lingua/pkg/artifact"
	"github.com/barekit/lingua/pkg/cache"
	"github.com/barekit/lingua/pkg/chat"
	"github.com/barekit/lingua/pkg/knowledge"
	"github.com/barekit/lingua/pkg/llm"
	"github.com/barekit/lingua/pkg/prompt"
	"github.com/barekit/lingua/pkg/speech"
	"github.com/barekit/lingua/pkg/store"
	"github.com/google/uuid"
)

// FallbackResponse is persisted as the bot's turn when the LLM call fails.
// The conversation advances instead of aborting.
const FallbackResponse = "I apologize, but I'm having trouble responding right now. Please try again in a moment."

// messageSeq hands out creation-order sequence numbers for persisted
// messages. The two turns of a query share a timestamp; the sequence keeps
// them ordered user-then-bot on every store backend.
var messageSeq atomic.Int64

// Manager coordinates the durable store, the session cache, the context
// window builder and the external providers.
type Manager struct {
	store        store.Store
	cache        cache.Cache
	llm          llm.Provider
	builder      *prompt.Builder
	params       llm.Params
	retentionCap int64

	synthesizer speech.Synthesizer
	transcriber speech.Transcriber
	normalizer  speech.Normalizer
	artifacts   *artifact.Manager
	library     *knowledge.Library
}

// Option is a function that configures a Manager.
type Option func(*Manager)

// New creates a new Manager.
func New(st store.Store, ca cache.Cache, provider llm.Provider, opts ...Option) *Manager {
	m := &Manager{
		store:        st,
		cache:        ca,
		llm:          provider,
		builder:      prompt.NewBuilder(prompt.NewTemplate("")),
		params:       llm.DefaultParams(),
		retentionCap: DefaultRetentionCap,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// WithTemplate sets the personalized preamble template.
func WithTemplate(t prompt.Template) Option {
	return func(m *Manager) {
		m.builder = prompt.NewBuilder(t)
	}
}

// WithParams sets the completion sampling parameters.
func WithParams(params llm.Params) Option {
	return func(m *Manager) {
		m.params = params
	}
}

// WithRetentionCap sets the per-owner conversation cap. Zero or negative
// disables eviction.
func WithRetentionCap(cap int64) Option {
	return func(m *Manager) {
		m.retentionCap = cap
	}
}

// WithSpeech enables voice output: synthesized replies are stored as
// ephemeral artifacts.
func WithSpeech(synth speech.Synthesizer, artifacts *artifact.Manager) Option {
	return func(m *Manager) {
		m.synthesizer = synth
		m.artifacts = artifacts
	}
}

// WithTranscription enables voice input. The normalizer may be nil when
// clients already submit provider-compatible audio.
func WithTranscription(transcriber speech.Transcriber, normalizer speech.Normalizer) Option {
	return func(m *Manager) {
		m.transcriber = transcriber
		m.normalizer = normalizer
	}
}

// CreateConversation makes room under the retention cap, then inserts a new
// conversation for the owner.
func (m *Manager) CreateConversation(ctx context.Context, ownerID string) (chat.Conversation, error) {
	if err := m.evictForCreate(ctx, ownerID); err != nil {
		return chat.Conversation{}, err
	}
	return m.store.CreateConversation(ctx, ownerID, "")
}

// ListConversations returns the owner's conversations, most recent first.
func (m *Manager) ListConversations(ctx context.Context, ownerID string) ([]chat.Conversation, error) {
	return m.store.ListConversations(ctx, ownerID)
}

// GetConversation returns the conversation's ordered history, ErrNotFound
// when it does not exist or belongs to another owner.
func (m *Manager) GetConversation(ctx context.Context, ownerID, conversationID string) ([]chat.Message, error) {
	if _, err := m.store.GetConversation(ctx, ownerID, conversationID); err != nil {
		return nil, err
	}
	return m.history(ctx, ownerID, conversationID)
}

// RenameConversation sets the conversation title.
func (m *Manager) RenameConversation(ctx context.Context, ownerID, conversationID, title string) error {
	if conversationID == "" || strings.TrimSpace(title) == "" {
		return ErrValidation
	}
	return m.store.RenameConversation(ctx, ownerID, conversationID, strings.TrimSpace(title))
}

// DeleteConversation removes the conversation, its messages and its session
// entry. From the caller's view the deletion is atomic: no orphans survive.
func (m *Manager) DeleteConversation(ctx context.Context, ownerID, conversationID string) error {
	if err := m.store.DeleteConversation(ctx, ownerID, conversationID); err != nil {
		return err
	}
	// The conversation is gone from the store at this point and the leftover
	// cache entry is unreachable through reads, so the delete still succeeds.
	if err := m.cache.Delete(ctx, ownerID, conversationID); err != nil {
		slog.Warn("Failed to drop cached session entry", "owner_id", ownerID, "conversation_id", conversationID, "error", err)
	}
	return nil
}

// Preferences returns the owner's learning profile, falling back to the
// defaults when none was ever saved.
func (m *Manager) Preferences(ctx context.Context, ownerID string) (chat.Preferences, error) {
	prefs, err := m.store.GetPreferences(ctx, ownerID)
	if errors.Is(err, store.ErrNotFound) {
		return chat.DefaultPreferences(ownerID), nil
	}
	if err != nil {
		return chat.Preferences{}, err
	}
	return prefs, nil
}

// UpdatePreferences upserts the owner's learning profile, filling empty
// fields with the defaults.
func (m *Manager) UpdatePreferences(ctx context.Context, prefs chat.Preferences) error {
	if prefs.OwnerID == "" {
		return ErrValidation
	}
	if prefs.TargetLanguage == "" {
		prefs.TargetLanguage = chat.DefaultLanguage
	}
	if prefs.ProficiencyLevel == "" {
		prefs.ProficiencyLevel = chat.DefaultProficiency
	}
	if prefs.DailyPracticeTime <= 0 {
		prefs.DailyPracticeTime = chat.DefaultPracticeMinutes
	}
	if prefs.LearningGoals == nil {
		prefs.LearningGoals = []string{}
	}
	if prefs.PreferredTopics == nil {
		prefs.PreferredTopics = []string{}
	}
	return m.store.PutPreferences(ctx, prefs)
}

// QueryRequest is one inbound question against a conversation.
type QueryRequest struct {
	OwnerID        string
	OwnerName      string
	ConversationID string
	Question       string
	VoiceOutput    bool
}

// QueryResult is the outcome of a query.
type QueryResult struct {
	Response       string
	ConversationID string
	// AudioName names the synthesized reply artifact, empty when voice
	// output was not requested or unavailable.
	AudioName string
}

// Query resolves the history, builds the context window, calls the LLM and
// writes the new turn back through the cache and the store. An LLM failure
// does not abort the turn: the fallback response is persisted instead.
func (m *Manager) Query(ctx context.Context, req QueryRequest) (QueryResult, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" || req.ConversationID == "" {
		return QueryResult{}, ErrValidation
	}

	if _, err := m.store.GetConversation(ctx, req.OwnerID, req.ConversationID); err != nil {
		return QueryResult{}, err
	}

	prefs, err := m.Preferences(ctx, req.OwnerID)
	if err != nil {
		return QueryResult{}, err
	}

	history, err := m.history(ctx, req.OwnerID, req.ConversationID)
	if err != nil {
		return QueryResult{}, err
	}

	messages := m.builder.Build(req.OwnerName, prefs, history, question)
	response, err := m.llm.Chat(ctx, messages, m.params)
	if err != nil {
		slog.Error("LLM call failed, persisting fallback turn",
			"owner_id", req.OwnerID,
			"conversation_id", req.ConversationID,
			"error", err)
		response = FallbackResponse
	}

	now := time.Now().UTC()
	userMsg := chat.Message{
		ID:              uuid.NewString(),
		ConversationID:  req.ConversationID,
		Content:         question,
		IsBot:           false,
		CreatedAt:       now,
		Seq:             messageSeq.Add(1),
		UserName:        req.OwnerName,
		UserProficiency: prefs.ProficiencyLevel,
	}
	botMsg := chat.Message{
		ID:             uuid.NewString(),
		ConversationID: req.ConversationID,
		Content:        response,
		IsBot:          true,
		CreatedAt:      now,
		Seq:            messageSeq.Add(1),
	}

	if err := m.store.AppendMessages(ctx, userMsg, botMsg); err != nil {
		return QueryResult{}, err
	}

	history = append(history, userMsg, botMsg)
	if err := m.cache.Put(ctx, req.OwnerID, req.ConversationID, history); err != nil {
		return QueryResult{}, err
	}

	if err := m.store.TouchConversation(ctx, req.ConversationID, prefs.ProficiencyLevel); err != nil {
		return QueryResult{}, err
	}

	result := QueryResult{Response: response, ConversationID: req.ConversationID}
	if req.VoiceOutput {
		result.AudioName = m.synthesize(ctx, response, prefs.TargetLanguage)
	}
	return result, nil
}

// Transcribe converts recorded audio to text, normalizing it first when a
// normalizer is configured. speech.ErrAmbiguous passes through untouched so
// callers can surface it as ordinary content.
func (m *Manager) Transcribe(ctx context.Context, audio []byte, format string) (string, error) {
	if m.transcriber == nil {
		return "", ErrUpstream
	}
	if len(audio) == 0 {
		return "", ErrValidation
	}

	if m.normalizer != nil {
		normalized, err := m.normalizer.Normalize(ctx, audio, format)
		if err != nil {
			slog.Warn("Audio normalization failed, passing original bytes", "format", format, "error", err)
		} else {
			audio, format = normalized, "wav"
		}
	}

	text, err := m.transcriber.Transcribe(ctx, audio, format)
	if errors.Is(err, speech.ErrAmbiguous) {
		return "", err
	}
	if err != nil {
		return "", errors.Join(ErrUpstream, err)
	}
	return text, nil
}

// FetchAudio returns a stored artifact, ErrNotFound when it expired or
// never existed.
func (m *Manager) FetchAudio(name string) ([]byte, error) {
	if m.artifacts == nil {
		return nil, ErrNotFound
	}
	return m.artifacts.Fetch(name)
}

// history is the single fast path consulted before every context window
// build: the cache entry when present, otherwise a rebuild from the durable
// store written back as write-through repair.
func (m *Manager) history(ctx context.Context, ownerID, conversationID string) ([]chat.Message, error) {
	msgs, ok, err := m.cache.Get(ctx, ownerID, conversationID)
	if err != nil {
		return nil, err
	}
	if ok {
		return msgs, nil
	}

	msgs, err = m.store.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if err := m.cache.Put(ctx, ownerID, conversationID, msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// synthesize renders the reply as audio and stores it. Voice output is best
// effort: a synthesis or storage failure is logged and the turn is served
// as text only.
func (m *Manager) synthesize(ctx context.Context, text, language string) string {
	if m.synthesizer == nil || m.artifacts == nil {
		return ""
	}

	audio, err := m.synthesizer.Synthesize(ctx, text, language)
	if err != nil {
		slog.Warn("Speech synthesis failed, serving text only", "error", err)
		return ""
	}
	name, err := m.artifacts.Store(audio)
	if err != nil {
		slog.Warn("Failed to store synthesized audio", "error", err)
		return ""
	}
	return name
}
