package lock

import (
	"time"

	"github.com/okian/runboard/pkg/logger"
)

// RedisOption configures a Redis lock.
type RedisOption func(*Redis)

// WithTTL sets how long a lock survives a holder that never releases it.
func WithTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithRetry sets the polling interval while waiting for a held lock.
func WithRetry(d time.Duration) RedisOption {
	return func(r *Redis) {
		if d > 0 {
			r.retry = d
		}
	}
}

// WithPrefix namespaces lock keys.
func WithPrefix(prefix string) RedisOption {
	return func(r *Redis) {
		r.prefix = prefix
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) RedisOption {
	return func(r *Redis) {
		if l != nil {
			r.logger = l
		}
	}
}
