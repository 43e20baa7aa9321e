// Package lock provides per-key mutual exclusion for player recomputes,
// in process or across instances through Redis.
package lock

import (
	"context"
	"errors"
)

var (
	// ErrNotAcquired is returned when a lock could not be taken before the deadline.
	ErrNotAcquired = errors.New("lock not acquired")
	// ErrEmptyKey is returned for an empty lock key.
	ErrEmptyKey = errors.New("lock key cannot be empty")
)

// Locker takes an exclusive lock on key and returns the function that
// releases it. The release function is safe to call more than once.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}
