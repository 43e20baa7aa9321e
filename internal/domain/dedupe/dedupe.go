// Package dedupe coalesces recompute requests for a player while one is
// already pending.
package dedupe

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/okian/runboard/pkg/metrics"
)

const defaultMaxSize = 50000

// Pending tracks keys with an outstanding request.
type Pending interface {
	// Mark records key as pending. It returns true when key was already
	// pending, in which case the caller should drop its request.
	Mark(ctx context.Context, key string) bool

	// Release clears key once its request was processed or abandoned.
	Release(ctx context.Context, key string)

	Size() int64
}

type entry struct {
	key      string
	markedAt time.Time
}

// Set implements Pending in memory. Entries older than the TTL count as
// released, so a request lost before Release cannot block a player forever.
// When full, the oldest entry is evicted.
type Set struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // front = oldest
	maxSize int
	ttl     time.Duration
	now     func() time.Time
}

var _ Pending = (*Set)(nil)

// NewSet creates a pending set with configuration options.
func NewSet(opts ...Option) *Set {
	s := &Set{
		entries: make(map[string]*list.Element),
		order:   list.New(),
		maxSize: defaultMaxSize,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Mark implements Pending.
func (s *Set) Mark(_ context.Context, key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if el, ok := s.entries[key]; ok {
		if !s.expired(el.Value.(*entry), now) {
			metrics.RecordPendingDuplicate()
			return true
		}
		s.remove(el)
	}

	if s.maxSize > 0 && s.order.Len() >= s.maxSize {
		s.remove(s.order.Front())
	}
	s.entries[key] = s.order.PushBack(&entry{key: key, markedAt: now})
	metrics.UpdatePendingSize(s.order.Len())
	return false
}

// Release implements Pending.
func (s *Set) Release(_ context.Context, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.entries[key]; ok {
		s.remove(el)
		metrics.UpdatePendingSize(s.order.Len())
	}
}

// Size returns the number of pending keys, expired ones included until
// they are touched again.
func (s *Set) Size() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(s.order.Len())
}

func (s *Set) expired(e *entry, now time.Time) bool {
	return s.ttl > 0 && now.Sub(e.markedAt) >= s.ttl
}

// remove must be called with s.mu held.
func (s *Set) remove(el *list.Element) {
	if el == nil {
		return
	}
	delete(s.entries, el.Value.(*entry).key)
	s.order.Remove(el)
}
