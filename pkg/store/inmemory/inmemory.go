package inmemory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/barekit/lingua/pkg/chat"
	"github.com/barekit/lingua/pkg/store/consts"
	"github.com/google/uuid"
)

// InMemory implements store.Store using maps. Intended for tests and
// single-process setups without a database.
type InMemory struct {
	mu            sync.RWMutex
	conversations map[string]chat.Conversation
	messages      map[string][]chat.Message // keyed by conversation id, insertion order
	preferences   map[string]chat.Preferences
}

// New creates a new InMemory store.
func New() *InMemory {
	return &InMemory{
		conversations: make(map[string]chat.Conversation),
		messages:      make(map[string][]chat.Message),
		preferences:   make(map[string]chat.Preferences),
	}
}

func (s *InMemory) CreateConversation(ctx context.Context, ownerID, title string) (chat.Conversation, error) {
	if title == "" {
		title = consts.DefaultTitle
	}
	now := time.Now().UTC()
	conv := chat.Conversation{
		ID:              uuid.NewString(),
		OwnerID:         ownerID,
		Title:           title,
		CreatedAt:       now,
		UpdatedAt:       now,
		LastInteraction: now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations[conv.ID] = conv
	return conv, nil
}

func (s *InMemory) ListConversations(ctx context.Context, ownerID string) ([]chat.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conversations := s.ownedLocked(ownerID)
	sort.SliceStable(conversations, func(i, j int) bool {
		return conversations[i].UpdatedAt.After(conversations[j].UpdatedAt)
	})
	return conversations, nil
}

func (s *InMemory) GetConversation(ctx context.Context, ownerID, id string) (chat.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[id]
	if !ok || conv.OwnerID != ownerID {
		return chat.Conversation{}, chat.ErrNotFound
	}
	return conv, nil
}

func (s *InMemory) TouchConversation(ctx context.Context, id, proficiency string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok {
		return nil
	}
	now := time.Now().UTC()
	conv.UpdatedAt = now
	conv.LastInteraction = now
	s.conversations[id] = conv
	return nil
}

func (s *InMemory) RenameConversation(ctx context.Context, ownerID, id, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok || conv.OwnerID != ownerID {
		return chat.ErrNotFound
	}
	conv.Title = title
	conv.UpdatedAt = time.Now().UTC()
	s.conversations[id] = conv
	return nil
}

func (s *InMemory) DeleteConversation(ctx context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok || conv.OwnerID != ownerID {
		return chat.ErrNotFound
	}
	delete(s.conversations, id)
	delete(s.messages, id)
	return nil
}

func (s *InMemory) OldestConversations(ctx context.Context, ownerID string, limit int) ([]chat.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conversations := s.ownedLocked(ownerID)
	sort.SliceStable(conversations, func(i, j int) bool {
		if conversations[i].UpdatedAt.Equal(conversations[j].UpdatedAt) {
			return conversations[i].ID < conversations[j].ID
		}
		return conversations[i].UpdatedAt.Before(conversations[j].UpdatedAt)
	})
	if limit < len(conversations) {
		conversations = conversations[:limit]
	}
	return conversations, nil
}

func (s *InMemory) CountConversations(ctx context.Context, ownerID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.ownedLocked(ownerID))), nil
}

func (s *InMemory) AppendMessages(ctx context.Context, msgs ...chat.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, msg := range msgs {
		s.messages[msg.ConversationID] = append(s.messages[msg.ConversationID], msg)
	}
	return nil
}

func (s *InMemory) ListMessages(ctx context.Context, conversationID string) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.messages[conversationID]
	// Copy before sorting; callers may retain the slice.
	result := make([]chat.Message, len(msgs))
	copy(result, msgs)
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].Seq < result[j].Seq
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (s *InMemory) GetPreferences(ctx context.Context, ownerID string) (chat.Preferences, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prefs, ok := s.preferences[ownerID]
	if !ok {
		return chat.Preferences{}, chat.ErrNotFound
	}
	return prefs, nil
}

func (s *InMemory) PutPreferences(ctx context.Context, prefs chat.Preferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.preferences[prefs.OwnerID] = prefs
	return nil
}

// ownedLocked returns a copy of the owner's conversations. Callers must hold
// at least a read lock.
func (s *InMemory) ownedLocked(ownerID string) []chat.Conversation {
	var conversations []chat.Conversation
	for _, conv := range s.conversations {
		if conv.OwnerID == ownerID {
			conversations = append(conversations, conv)
		}
	}
	return conversations
}
