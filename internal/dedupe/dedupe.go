// Package dedupe provides a Redis-backed seen-event store used to drop
// duplicate webhook deliveries before they reach state machine transitions.
package dedupe

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Retention bounds how long an event id is remembered. Providers redeliver
// within minutes; a day of retention is comfortable margin without letting
// the set grow forever.
const Retention = 24 * time.Hour

// Store records webhook event ids with bounded retention.
type Store struct {
	rdb       *redis.Client
	retention time.Duration
}

// New creates a Store from a Redis URL.
func New(redisURL string) (*Store, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return NewWithClient(redis.NewClient(opt)), nil
}

// NewWithClient wraps an existing Redis client. Used by tests.
func NewWithClient(rdb *redis.Client) *Store {
	return &Store{rdb: rdb, retention: Retention}
}

// Seen atomically records the event id and reports whether it was already
// present. The first caller for an id gets false; every caller within the
// retention window after that gets true.
func (s *Store) Seen(ctx context.Context, source, eventID string) (bool, error) {
	key := fmt.Sprintf("webhook:seen:%s:%s", source, eventID)

	set, err := s.rdb.SetNX(ctx, key, 1, s.retention).Result()
	if err != nil {
		return false, fmt.Errorf("dedupe check failed: %w", err)
	}

	return !set, nil
}

// Forget removes a recorded event id so the provider's retry of a failed
// delivery is not dropped as a duplicate.
func (s *Store) Forget(ctx context.Context, source, eventID string) error {
	key := fmt.Sprintf("webhook:seen:%s:%s", source, eventID)
	return s.rdb.Del(ctx, key).Err()
}

// Close releases the underlying Redis connection.
func (s *Store) Close() error {
	return s.rdb.Close()
}
