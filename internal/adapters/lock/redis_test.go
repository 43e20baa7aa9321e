package lock_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/okian/runboard/internal/adapters/lock"
)

func redisClient(t *testing.T) *redis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping Redis integration test in short mode")
	}
	ctx := context.Background()

	c, err := testcontainers.Run(ctx, "redis:7-alpine",
		testcontainers.WithExposedPorts("6379/tcp"),
		testcontainers.WithWaitStrategy(wait.ForListeningPort("6379/tcp").WithStartupTimeout(30*time.Second)),
	)
	testcontainers.CleanupContainer(t, c)
	if err != nil {
		t.Skipf("redis container unavailable: %v", err)
	}
	addr, err := c.Endpoint(ctx, "")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisLock(t *testing.T) {
	client := redisClient(t)
	ctx := context.Background()
	l := lock.NewRedis(client, lock.WithTTL(time.Second), lock.WithRetry(5*time.Millisecond), lock.WithPrefix("test:"))
	require.NoError(t, l.Ping(ctx))

	unlock, err := l.Lock(ctx, "player:p1")
	require.NoError(t, err)

	token, err := client.Get(ctx, "test:player:p1").Result()
	require.NoError(t, err)
	require.NotEmpty(t, token)

	tctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = l.Lock(tctx, "player:p1")
	require.True(t, errors.Is(err, lock.ErrNotAcquired))

	unlock()
	require.Equal(t, int64(0), client.Exists(ctx, "test:player:p1").Val())

	again, err := l.Lock(ctx, "player:p1")
	require.NoError(t, err)
	again()
}

func TestRedisLockExpiredHolder(t *testing.T) {
	client := redisClient(t)
	ctx := context.Background()
	l := lock.NewRedis(client, lock.WithTTL(100*time.Millisecond), lock.WithRetry(5*time.Millisecond), lock.WithPrefix("test:"))

	stale, err := l.Lock(ctx, "player:p2")
	require.NoError(t, err)

	// The first holder outlives its TTL and a second one takes over.
	fresh, err := l.Lock(ctx, "player:p2")
	require.NoError(t, err)

	stale()
	require.Equal(t, int64(1), client.Exists(ctx, "test:player:p2").Val())

	fresh()
	require.Equal(t, int64(0), client.Exists(ctx, "test:player:p2").Val())
}
