package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/coinvault/coinvault/internal/application/ports"
)

// idempotencyKeyPrefix namespaces cached responses.
const idempotencyKeyPrefix = "idem:response:"

var _ ports.IdempotencyCache = (*IdempotencyCache)(nil)

// IdempotencyCache is the fast, non-authoritative replay store. Entries
// expire after the configured TTL; the transactions table remains the
// source of truth after eviction.
type IdempotencyCache struct {
	client Commands
	ttl    time.Duration
	log    *slog.Logger
}

// NewIdempotencyCache creates the cache with the given response TTL.
func NewIdempotencyCache(client Commands, ttl time.Duration, log *slog.Logger) *IdempotencyCache {
	if log == nil {
		log = slog.Default()
	}
	return &IdempotencyCache{client: client, ttl: ttl, log: log}
}

// Get returns the cached response, or nil on a miss.
func (c *IdempotencyCache) Get(ctx context.Context, key string) (*ports.CachedResponse, error) {
	raw, err := c.client.Get(ctx, idempotencyKeyPrefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("read idempotency cache: %w", err)
	}

	var cached ports.CachedResponse
	if err := json.Unmarshal([]byte(raw), &cached); err != nil {
		// A corrupt entry is treated as a miss; the database resolves it.
		c.log.WarnContext(ctx, "corrupt idempotency cache entry",
			slog.String("idempotency_key", key),
			slog.String("error", err.Error()))
		return nil, nil
	}
	return &cached, nil
}

// Set stores the response under the configured TTL.
func (c *IdempotencyCache) Set(ctx context.Context, key string, response *ports.CachedResponse) error {
	payload, err := json.Marshal(response)
	if err != nil {
		return fmt.Errorf("marshal cached response: %w", err)
	}

	if err := c.client.Set(ctx, idempotencyKeyPrefix+key, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("write idempotency cache: %w", err)
	}
	return nil
}
