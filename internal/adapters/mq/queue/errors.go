package queue

import "errors"

// Sentinel kinds for scheduling errors.
var (
	ErrClosed = errors.New("queue closed")
	ErrFull   = errors.New("queue full")
)
