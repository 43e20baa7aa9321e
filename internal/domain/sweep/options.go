package sweep

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/okian/runboard/pkg/logger"
)

// Option configures a Sweeper.
type Option func(*Sweeper)

// WithRate throttles the sweep to r items per second with the given burst.
// A non-positive rate disables throttling.
func WithRate(r float64, burst int) Option {
	return func(s *Sweeper) {
		if r <= 0 {
			s.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		s.limiter = rate.NewLimiter(rate.Limit(r), max(burst, 1))
	}
}

// WithProgress registers a callback invoked after every item.
func WithProgress(fn func(Progress)) Option {
	return func(s *Sweeper) {
		if fn != nil {
			s.progress = fn
		}
	}
}

// WithCheckpointName sets the name the cursor is stored under.
func WithCheckpointName(name string) Option {
	return func(s *Sweeper) {
		if name != "" {
			s.checkpoint = name
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Sweeper) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock replaces time.Now for checkpoint timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) {
		if now != nil {
			s.now = now
		}
	}
}
