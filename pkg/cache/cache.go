// Package cache defines the session cache: a denormalized, per-conversation
// copy of the ordered message history keyed by (owner, conversation).
//
// The cache is derived data and never a source of truth; it is rebuilt from
// the durable store on a miss. Put replaces the entry wholesale with no
// merge, so two concurrent writers against the same conversation race
// last-writer-wins and the slower writer's replace can discard the faster
// writer's turn. That behavior is inherited and intentional.
package cache

import (
	"context"
	"fmt"

	"github.com/barekit/lingua/pkg/cache/inmemory"
	"github.com/barekit/lingua/pkg/cache/redis"
	"github.com/barekit/lingua/pkg/chat"
	goredis "github.com/redis/go-redis/v9"
)

// Cache represents fast-path storage for conversation histories.
type Cache interface {
	// Get returns the cached history and whether an entry exists. A missing
	// entry is not an error.
	Get(ctx context.Context, ownerID, conversationID string) ([]chat.Message, bool, error)
	// Put replaces the entry wholesale (last-writer-wins).
	Put(ctx context.Context, ownerID, conversationID string, msgs []chat.Message) error
	// Delete removes the entry, if any.
	Delete(ctx context.Context, ownerID, conversationID string) error
}

type Type string

const (
	TypeRedis    Type = "redis"
	TypeInMemory Type = "inmemory"
)

// Config holds configuration for cache adapters.
type Config struct {
	Type             Type
	ConnectionString string
}

// NewFactory creates a new cache adapter based on the configuration.
func NewFactory(ctx context.Context, cfg Config) (Cache, error) {
	switch cfg.Type {
	case TypeRedis:
		opts, err := goredis.ParseURL(cfg.ConnectionString)
		if err != nil {
			return nil, fmt.Errorf("failed to parse redis url: %w", err)
		}
		client := goredis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to ping redis: %w", err)
		}
		return redis.New(client), nil

	case TypeInMemory:
		return inmemory.New(), nil

	default:
		return nil, fmt.Errorf("unsupported cache type: %s", cfg.Type)
	}
}
