package kafka

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryIdempotencyStore(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewMemoryIdempotencyStore(time.Minute)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	seen, err := s.Seen(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, s.Remember(ctx, "evt-1"))
	seen, err = s.Seen(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, seen)

	now = now.Add(time.Minute)
	seen, err = s.Seen(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, seen, "entries expire after the ttl")
	assert.Zero(t, s.Len())
}

func TestMemoryIdempotencyStore_SweepsOnWrite(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewMemoryIdempotencyStore(time.Minute)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	for i := range 5 {
		require.NoError(t, s.Remember(ctx, fmt.Sprintf("old-%d", i)))
	}
	assert.Equal(t, 5, s.Len())

	now = now.Add(30 * time.Second)
	require.NoError(t, s.Remember(ctx, "mid"))
	assert.Equal(t, 6, s.Len(), "no sweep within one ttl of the last")

	now = now.Add(45 * time.Second)
	require.NoError(t, s.Remember(ctx, "new"))
	assert.Equal(t, 2, s.Len())
}

func TestMemoryIdempotencyStore_Concurrent(t *testing.T) {
	s := NewMemoryIdempotencyStore(time.Minute)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := fmt.Sprintf("evt-%d", i%10)
			_ = s.Remember(ctx, id)
			_, _ = s.Seen(ctx, id)
		}()
	}
	wg.Wait()
	assert.Equal(t, 10, s.Len())
}

func newRedisStore(t *testing.T, ttl time.Duration) (*RedisIdempotencyStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisIdempotencyStore(client, "search:events:", ttl), mr
}

func TestRedisIdempotencyStore(t *testing.T) {
	s, mr := newRedisStore(t, time.Hour)
	ctx := context.Background()

	seen, err := s.Seen(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, s.Remember(ctx, "evt-1"))
	assert.True(t, mr.Exists("search:events:evt-1"))
	assert.Equal(t, time.Hour, mr.TTL("search:events:evt-1"))

	seen, err = s.Seen(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, seen)

	mr.FastForward(time.Hour)
	seen, err = s.Seen(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestRedisIdempotencyStore_Unavailable(t *testing.T) {
	s, mr := newRedisStore(t, time.Hour)
	mr.Close()

	_, err := s.Seen(context.Background(), "evt-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "evt-1")
	assert.Error(t, s.Remember(context.Background(), "evt-1"))
}

func TestConsumer_SharedRedisStoreDeduplicatesAcrossConsumers(t *testing.T) {
	s, _ := newRedisStore(t, time.Hour)
	var calls int
	handler := func(context.Context, *Event) error {
		calls++
		return nil
	}
	first := newTestConsumer(t, ConsumerConfig{Idempotency: s}, handler)
	second := newTestConsumer(t, ConsumerConfig{Idempotency: s}, handler)
	msg := testMessage(t, indexedEvent(t))

	assert.True(t, first.process(context.Background(), msg))
	assert.True(t, second.process(context.Background(), msg))
	assert.Equal(t, 1, calls)
}
