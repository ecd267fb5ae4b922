package checkpoint

import (
	"context"
	"fmt"
	"time"

	"xenoxify-sync-engine/internal/domain"
	"xenoxify-sync-engine/internal/ports"

	"github.com/redis/go-redis/v9"
)

// DefaultCursorTTL bounds how long a stale resume cursor survives. Upstream
// page tokens expire quickly, so there is no point keeping them around.
const DefaultCursorTTL = 6 * time.Hour

// RedisCursorStore keeps resume cursors in Redis, one key per
// (tenant, entity) pair.
type RedisCursorStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisCursorStore creates a cursor store backed by the given Redis client.
func NewRedisCursorStore(rdb *redis.Client, ttl time.Duration) ports.CursorStore {
	if ttl <= 0 {
		ttl = DefaultCursorTTL
	}
	return &RedisCursorStore{rdb: rdb, ttl: ttl}
}

func cursorKey(tenantID string, entity domain.EntityType) string {
	return fmt.Sprintf("sync:cursor:%s:%s", tenantID, entity)
}

// Load returns the saved cursor for the pair, or "" when none exists.
func (s *RedisCursorStore) Load(ctx context.Context, tenantID string, entity domain.EntityType) (string, error) {
	val, err := s.rdb.Get(ctx, cursorKey(tenantID, entity)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load cursor: %w", err)
	}
	return val, nil
}

// Save stores the cursor with the configured TTL.
func (s *RedisCursorStore) Save(ctx context.Context, tenantID string, entity domain.EntityType, cursor string) error {
	if err := s.rdb.Set(ctx, cursorKey(tenantID, entity), cursor, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save cursor: %w", err)
	}
	return nil
}

// Clear removes the cursor once a collection has been fully drained.
func (s *RedisCursorStore) Clear(ctx context.Context, tenantID string, entity domain.EntityType) error {
	if err := s.rdb.Del(ctx, cursorKey(tenantID, entity)).Err(); err != nil {
		return fmt.Errorf("failed to clear cursor: %w", err)
	}
	return nil
}
