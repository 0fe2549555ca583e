package inmemory

import (
	"context"
	"sync"

	"github.com/barekit/lingua/pkg/chat"
)

// InMemory implements the session cache using a map.
type InMemory struct {
	mu      sync.RWMutex
	entries map[string][]chat.Message
}

// New creates a new InMemory cache.
func New() *InMemory {
	return &InMemory{
		entries: make(map[string][]chat.Message),
	}
}

// Get loads the cached history, reporting whether an entry exists.
func (c *InMemory) Get(ctx context.Context, ownerID, conversationID string) ([]chat.Message, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	msgs, ok := c.entries[key(ownerID, conversationID)]
	if !ok {
		return nil, false, nil
	}

	// Callers may retain and modify the slice.
	result := make([]chat.Message, len(msgs))
	copy(result, msgs)
	return result, true, nil
}

// Put replaces the entry wholesale.
func (c *InMemory) Put(ctx context.Context, ownerID, conversationID string, msgs []chat.Message) error {
	stored := make([]chat.Message, len(msgs))
	copy(stored, msgs)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key(ownerID, conversationID)] = stored
	return nil
}

// Delete removes the entry.
func (c *InMemory) Delete(ctx context.Context, ownerID, conversationID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key(ownerID, conversationID))
	return nil
}

func key(ownerID, conversationID string) string {
	return ownerID + ":" + conversationID
}
