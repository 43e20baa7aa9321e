package worker

import (
	"github.com/okian/runboard/internal/domain/dedupe"
	"github.com/okian/runboard/pkg/logger"
)

// Option applies a configuration option to the InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithPending releases each player from pending as its request is taken.
func WithPending(p dedupe.Pending) Option {
	return func(w *InMemoryWorker) {
		w.pending = p
	}
}
