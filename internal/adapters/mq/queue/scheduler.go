package queue

import (
	"context"
	"fmt"

	"github.com/okian/runboard/internal/domain/dedupe"
)

// Scheduler enqueues recompute requests, dropping a request while an
// earlier one for the same player is still waiting. Workers release the
// player when they take the request off the queue.
type Scheduler struct {
	queue   Queue
	pending dedupe.Pending
}

// NewScheduler creates a scheduler on q. pending may be nil to disable
// coalescing.
func NewScheduler(q Queue, pending dedupe.Pending) *Scheduler {
	return &Scheduler{queue: q, pending: pending}
}

// Schedule queues req unless the player already has a request waiting.
func (s *Scheduler) Schedule(ctx context.Context, req Request) error {
	if s.pending != nil && s.pending.Mark(ctx, req.PlayerID) {
		return nil
	}
	if s.queue.Enqueue(ctx, req) {
		return nil
	}
	if s.pending != nil {
		s.pending.Release(ctx, req.PlayerID)
	}
	if s.queue.IsClosed() {
		return fmt.Errorf("schedule %s: %w", req.PlayerID, ErrClosed)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("schedule %s: %w", req.PlayerID, err)
	}
	return fmt.Errorf("schedule %s: %w", req.PlayerID, ErrFull)
}
