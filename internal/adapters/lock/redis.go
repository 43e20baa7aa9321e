package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/okian/runboard/pkg/logger"
	"github.com/okian/runboard/pkg/metrics"
)

// Defaults for the Redis lock.
const (
	DefaultTTL        = 30 * time.Second
	DefaultRetry      = 50 * time.Millisecond
	DefaultPrefix     = "runboard:lock:"
	unlockTimeout     = 3 * time.Second
	defaultRedisLabel = "redis"
)

// unlockScript deletes the key only while it still holds our token, so an
// expired lock taken over by another holder is left alone.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a lock shared by every instance talking to the same Redis. Each
// holder writes a random token with SET NX PX; the lock expires after the
// TTL if the holder dies.
type Redis struct {
	client redis.UniversalClient
	ttl    time.Duration
	retry  time.Duration
	prefix string
	logger logger.Logger
}

// NewRedis creates a lock on client.
func NewRedis(client redis.UniversalClient, opts ...RedisOption) *Redis {
	r := &Redis{
		client: client,
		ttl:    DefaultTTL,
		retry:  DefaultRetry,
		prefix: DefaultPrefix,
		logger: logger.Get().Named("lock"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Lock polls until the key is set by us or ctx is done.
func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	name := r.prefix + key
	token := uuid.NewString()
	start := time.Now()

	ticker := time.NewTicker(r.retry)
	defer ticker.Stop()
	for {
		ok, err := r.client.SetNX(ctx, name, token, r.ttl).Result()
		if err != nil {
			metrics.RecordLockError()
			metrics.RecordErrorByComponent("lock", defaultRedisLabel)
			return nil, fmt.Errorf("set %s: %w", name, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			metrics.RecordLockError()
			return nil, fmt.Errorf("%w: %s: %w", ErrNotAcquired, key, ctx.Err())
		case <-ticker.C:
		}
	}
	metrics.RecordLockWait(time.Since(start))

	var once sync.Once
	return func() {
		once.Do(func() { r.unlock(name, token) })
	}, nil
}

func (r *Redis) unlock(name, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), unlockTimeout)
	defer cancel()
	if err := unlockScript.Run(ctx, r.client, []string{name}, token).Err(); err != nil {
		metrics.RecordLockError()
		r.logger.Warn(ctx, "failed to release lock", logger.String("key", name), logger.Error(err))
	}
}

// Ping checks the connection.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
