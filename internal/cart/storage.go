package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/butterandcrumb/storefront-backend/pkg/redis"
)

// Storage is the durable mirror of the cart, standing in for the browser's
// key-value store. Implementations must treat a missing snapshot as empty.
type Storage interface {
	Load(ctx context.Context) ([]Item, error)
	Save(ctx context.Context, items []Item) error
	Clear(ctx context.Context) error
}

// snapshotTTL keeps abandoned carts from accumulating forever.
const snapshotTTL = 14 * 24 * time.Hour

// kvStore is the slice of the redis client the mirror needs.
type kvStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	CartKey(sessionID string) string
}

// RedisStorage mirrors a session's cart into Redis.
type RedisStorage struct {
	client    kvStore
	sessionID string
}

// NewRedisStorage scopes cart persistence to the given session.
func NewRedisStorage(client *redis.Client, sessionID string) *RedisStorage {
	return &RedisStorage{client: client, sessionID: sessionID}
}

func (r *RedisStorage) Load(ctx context.Context) ([]Item, error) {
	raw, err := r.client.Get(ctx, r.client.CartKey(r.sessionID))
	if err != nil {
		if redis.IsNil(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("load cart snapshot: %w", err)
	}
	var items []Item
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("decode cart snapshot: %w", err)
	}
	return items, nil
}

func (r *RedisStorage) Save(ctx context.Context, items []Item) error {
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode cart snapshot: %w", err)
	}
	if err := r.client.Set(ctx, r.client.CartKey(r.sessionID), raw, snapshotTTL); err != nil {
		return fmt.Errorf("save cart snapshot: %w", err)
	}
	return nil
}

func (r *RedisStorage) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, r.client.CartKey(r.sessionID)); err != nil {
		return fmt.Errorf("clear cart snapshot: %w", err)
	}
	return nil
}
