package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/layer-3/tonbridge/core"
	"github.com/layer-3/tonbridge/ports"
	"github.com/redis/go-redis/v9"
)

// consumeScript deletes KEYS[1] only when it still holds ARGV[1]
var consumeScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisStore is a Redis implementation of the Registry interface
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore creates a new Redis registry
func NewRedisStore(client redis.UniversalClient) ports.Registry {
	return &RedisStore{
		client: client,
		prefix: "tonbridge:pending:",
	}
}

// Put stores the state token for a chat, overwriting any previous one
func (s *RedisStore) Put(ctx context.Context, pending core.PendingAuth) error {
	key := s.prefix + pending.ChatID

	var ttl time.Duration
	if !pending.ExpiresAt.IsZero() {
		ttl = time.Until(pending.ExpiresAt)
		if ttl <= 0 {
			// the replacement is already dead but must still revoke the previous token
			if err := s.client.Del(ctx, key).Err(); err != nil {
				return fmt.Errorf("failed to clear pending auth: %w", err)
			}
			return nil
		}
	}

	// ttl 0 keeps the key until it is consumed or overwritten
	if err := s.client.Set(ctx, key, pending.State, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store pending auth: %w", err)
	}

	return nil
}

// Get returns the pending state for a chat
func (s *RedisStore) Get(ctx context.Context, chatID string) (core.PendingAuth, bool, error) {
	state, err := s.client.Get(ctx, s.prefix+chatID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return core.PendingAuth{}, false, nil
		}
		return core.PendingAuth{}, false, fmt.Errorf("failed to load pending auth: %w", err)
	}

	return core.PendingAuth{ChatID: chatID, State: state}, true, nil
}

// Consume atomically deletes the entry if it still holds state
func (s *RedisStore) Consume(ctx context.Context, chatID, state string) (bool, error) {
	deleted, err := consumeScript.Run(ctx, s.client, []string{s.prefix + chatID}, state).Int()
	if err != nil {
		return false, fmt.Errorf("failed to consume pending auth: %w", err)
	}

	return deleted > 0, nil
}
