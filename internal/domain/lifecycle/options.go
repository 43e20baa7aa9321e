package lifecycle

import (
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/okian/runboard/internal/domain/scoring"
	"github.com/okian/runboard/pkg/logger"
)

// Option configures a Machine.
type Option func(*Machine)

// WithScheduler hands cascade recomputes to s instead of running them inline.
func WithScheduler(s Scheduler) Option {
	return func(m *Machine) {
		if s != nil {
			m.scheduler = s
		}
	}
}

// WithCalculator replaces the points calculator.
func WithCalculator(c scoring.Calculator) Option {
	return func(m *Machine) {
		if c != nil {
			m.calc = c
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(m *Machine) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithTracer sets the tracer spans are started on.
func WithTracer(t trace.Tracer) Option {
	return func(m *Machine) {
		if t != nil {
			m.tracer = t
		}
	}
}

// WithClock replaces time.Now for request timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) {
		if now != nil {
			m.now = now
		}
	}
}
