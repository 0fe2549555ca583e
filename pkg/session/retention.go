package session

import (
	"context"
	"fmt"
	"log/slog"
)

// DefaultRetentionCap is the per-owner conversation cap applied when none
// is configured. A very large cap effectively disables eviction.
const DefaultRetentionCap = 100

// evictForCreate enforces the per-owner retention cap before a conversation
// is inserted: when the owner already holds cap or more conversations, the
// count-cap+1 least recently updated ones are deleted (ties broken by id)
// so the total never exceeds the cap once the new conversation lands.
func (m *Manager) evictForCreate(ctx context.Context, ownerID string) error {
	if m.retentionCap <= 0 {
		return nil
	}

	count, err := m.store.CountConversations(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("failed to count conversations: %w", err)
	}
	if count < m.retentionCap {
		return nil
	}

	excess := int(count - m.retentionCap + 1)
	oldest, err := m.store.OldestConversations(ctx, ownerID, excess)
	if err != nil {
		return fmt.Errorf("failed to find oldest conversations: %w", err)
	}

	for _, conv := range oldest {
		if err := m.store.DeleteConversation(ctx, ownerID, conv.ID); err != nil {
			return fmt.Errorf("failed to evict conversation %s: %w", conv.ID, err)
		}
		if err := m.cache.Delete(ctx, ownerID, conv.ID); err != nil {
			slog.Warn("Failed to drop cached session entry", "owner_id", ownerID, "conversation_id", conv.ID, "error", err)
		}
		slog.Info("Evicted conversation over retention cap",
			"owner_id", ownerID,
			"conversation_id", conv.ID,
			"updated_at", conv.UpdatedAt)
	}
	return nil
}
