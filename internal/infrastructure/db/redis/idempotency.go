package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bizdesk/backoffice/internal/core/ports"
)

const defaultIdempotencyTTL = 24 * time.Hour

// IdempotencyStore maps client-supplied Idempotency-Key values to the order
// they created. Keys are scoped per actor so two users can reuse a key.
// Key format: idem:<actor_id>:<key>
type IdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

var _ ports.IdempotencyStore = (*IdempotencyStore)(nil)

// NewIdempotencyStore wraps client. A non-positive ttl means 24h.
func NewIdempotencyStore(client *redis.Client, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	return &IdempotencyStore{client: client, ttl: ttl}
}

// Lookup returns the order id recorded for the key, if any.
func (s *IdempotencyStore) Lookup(ctx context.Context, actorID, key string) (string, bool, error) {
	orderID, err := s.client.Get(ctx, idempotencyKey(actorID, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("idempotency lookup: %w", err)
	}
	return orderID, true, nil
}

// Remember records orderID for the key unless another order already claimed it.
func (s *IdempotencyStore) Remember(ctx context.Context, actorID, key, orderID string) error {
	if err := s.client.SetNX(ctx, idempotencyKey(actorID, key), orderID, s.ttl).Err(); err != nil {
		return fmt.Errorf("idempotency remember: %w", err)
	}
	return nil
}

func idempotencyKey(actorID, key string) string {
	return fmt.Sprintf("idem:%s:%s", actorID, key)
}
