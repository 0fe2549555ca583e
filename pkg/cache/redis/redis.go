package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/barekit/lingua/pkg/chat"
	"github.com/redis/go-redis/v9"
)

// RedisCache implements the session cache using Redis.
// Each (owner, conversation) pair is stored as a single JSON document under
// "session:{ownerID}:{conversationID}" and replaced wholesale on Put.
type RedisCache struct {
	client *redis.Client
}

// entry is the stored document shape.
type entry struct {
	Messages  []chat.Message `json:"messages"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// New creates a new RedisCache.
func New(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Get loads the cached history for the pair, reporting whether an entry
// exists.
func (c *RedisCache) Get(ctx context.Context, ownerID, conversationID string) ([]chat.Message, bool, error) {
	raw, err := c.client.Get(ctx, key(ownerID, conversationID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var e entry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal session entry: %w", err)
	}
	return e.Messages, true, nil
}

// Put replaces the entry wholesale.
func (c *RedisCache) Put(ctx context.Context, ownerID, conversationID string, msgs []chat.Message) error {
	b, err := json.Marshal(entry{Messages: msgs, UpdatedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to marshal session entry: %w", err)
	}
	return c.client.Set(ctx, key(ownerID, conversationID), b, 0).Err()
}

// Delete removes the entry.
func (c *RedisCache) Delete(ctx context.Context, ownerID, conversationID string) error {
	return c.client.Del(ctx, key(ownerID, conversationID)).Err()
}

func key(ownerID, conversationID string) string {
	return fmt.Sprintf("session:%s:%s", ownerID, conversationID)
}
