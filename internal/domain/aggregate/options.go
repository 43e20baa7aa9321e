package aggregate

import (
	"go.opentelemetry.io/otel/trace"

	"github.com/okian/runboard/internal/domain/scoring"
	"github.com/okian/runboard/pkg/logger"
)

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithBatchSize sets the number of runs written per store call.
func WithBatchSize(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.batchSize = n
		}
	}
}

// WithLocker serializes recomputes of the same player.
func WithLocker(l Locker) Option {
	return func(a *Aggregator) {
		if l != nil {
			a.locker = l
		}
	}
}

// WithCalculator replaces the points calculator.
func WithCalculator(c scoring.Calculator) Option {
	return func(a *Aggregator) {
		if c != nil {
			a.calc = c
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(a *Aggregator) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithTracer sets the tracer spans are started on.
func WithTracer(t trace.Tracer) Option {
	return func(a *Aggregator) {
		if t != nil {
			a.tracer = t
		}
	}
}
