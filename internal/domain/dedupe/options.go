package dedupe

import "time"

// Option applies a configuration option to the Set.
type Option func(*Set)

// WithMaxSize bounds the number of pending keys. When the set is full the
// oldest key is evicted. A value <= 0 removes the bound.
func WithMaxSize(maxSize int) Option {
	return func(s *Set) {
		s.maxSize = maxSize
	}
}

// WithTTL makes keys pending for at most ttl. Zero disables expiry.
func WithTTL(ttl time.Duration) Option {
	return func(s *Set) {
		if ttl >= 0 {
			s.ttl = ttl
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Set) {
		if now != nil {
			s.now = now
		}
	}
}
