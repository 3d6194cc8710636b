package kafka

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// IdempotencyStore remembers which event IDs were handled. Implementations
// must be safe for concurrent use.
type IdempotencyStore interface {
	// Seen reports whether eventID was remembered and has not expired.
	Seen(ctx context.Context, eventID string) (bool, error)
	// Remember records eventID after its handler succeeded.
	Remember(ctx context.Context, eventID string) error
}

// MemoryIdempotencyStore keeps event IDs in process. Expired entries are
// swept on write, at most once per TTL.
type MemoryIdempotencyStore struct {
	mu        sync.Mutex
	expiry    map[string]time.Time
	ttl       time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// NewMemoryIdempotencyStore creates a store whose entries live for ttl.
func NewMemoryIdempotencyStore(ttl time.Duration) *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{
		expiry: make(map[string]time.Time),
		ttl:    ttl,
		now:    time.Now,
	}
}

func (s *MemoryIdempotencyStore) Seen(_ context.Context, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	exp, ok := s.expiry[eventID]
	if !ok {
		return false, nil
	}
	if !s.now().Before(exp) {
		delete(s.expiry, eventID)
		return false, nil
	}
	return true, nil
}

func (s *MemoryIdempotencyStore) Remember(_ context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.Sub(s.lastSweep) >= s.ttl {
		for id, exp := range s.expiry {
			if !now.Before(exp) {
				delete(s.expiry, id)
			}
		}
		s.lastSweep = now
	}
	s.expiry[eventID] = now.Add(s.ttl)
	return nil
}

// Len returns the number of entries, expired ones included until swept.
func (s *MemoryIdempotencyStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.expiry)
}

// RedisIdempotencyStore shares handled event IDs between replicas of a
// consumer group so a rebalance does not replay work.
type RedisIdempotencyStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisIdempotencyStore stores IDs under prefix with the given ttl.
func NewRedisIdempotencyStore(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisIdempotencyStore) key(eventID string) string {
	return s.prefix + eventID
}

func (s *RedisIdempotencyStore) Seen(ctx context.Context, eventID string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(eventID)).Result()
	if err != nil {
		return false, fmt.Errorf("check event %s: %w", eventID, err)
	}
	return n > 0, nil
}

func (s *RedisIdempotencyStore) Remember(ctx context.Context, eventID string) error {
	if err := s.client.Set(ctx, s.key(eventID), 1, s.ttl).Err(); err != nil {
		return fmt.Errorf("remember event %s: %w", eventID, err)
	}
	return nil
}
