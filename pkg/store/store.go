// Package store defines the durable conversation store: conversations,
// their messages and per-owner preferences. Every conversation lookup is
// scoped by owner; an id owned by someone else behaves exactly like a
// missing id.
package store

import (
	"context"

	"github.com/barekit/lingua/pkg/chat"
)

// ErrNotFound is returned when a conversation (or preference record) does
// not exist or is not owned by the caller.
var ErrNotFound = chat.ErrNotFound

// Store represents durable storage for conversations, messages and
// preferences.
type Store interface {
	// CreateConversation inserts a new conversation for the owner and
	// returns it. The id is generated by the store and immutable.
	CreateConversation(ctx context.Context, ownerID, title string) (chat.Conversation, error)
	// ListConversations returns the owner's conversations ordered by
	// updated_at descending.
	ListConversations(ctx context.Context, ownerID string) ([]chat.Conversation, error)
	// GetConversation returns the conversation if it exists and belongs to
	// the owner, ErrNotFound otherwise.
	GetConversation(ctx context.Context, ownerID, id string) (chat.Conversation, error)
	// TouchConversation updates updated_at and last_interaction to now and
	// records the owner's proficiency snapshot.
	TouchConversation(ctx context.Context, id, proficiency string) error
	// RenameConversation sets the title, ErrNotFound if absent or not owned.
	RenameConversation(ctx context.Context, ownerID, id, title string) error
	// DeleteConversation removes the conversation and every message with
	// its conversation_id. ErrNotFound if absent or not owned.
	DeleteConversation(ctx context.Context, ownerID, id string) error
	// OldestConversations returns up to limit conversations for the owner
	// ordered by updated_at ascending, ties broken by id.
	OldestConversations(ctx context.Context, ownerID string, limit int) ([]chat.Conversation, error)
	// CountConversations returns the number of conversations the owner has.
	CountConversations(ctx context.Context, ownerID string) (int64, error)

	// AppendMessages persists the messages. Messages are immutable once
	// written; ids must be set by the caller.
	AppendMessages(ctx context.Context, msgs ...chat.Message) error
	// ListMessages returns all messages for the conversation ordered by
	// created_at ascending, ties broken by insertion order.
	ListMessages(ctx context.Context, conversationID string) ([]chat.Message, error)

	// GetPreferences returns the owner's preferences, ErrNotFound if the
	// owner never saved any.
	GetPreferences(ctx context.Context, ownerID string) (chat.Preferences, error)
	// PutPreferences upserts the owner's preferences wholesale.
	PutPreferences(ctx context.Context, prefs chat.Preferences) error
}
