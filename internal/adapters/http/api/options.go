package api

import (
	"golang.org/x/time/rate"

	"github.com/okian/runboard/pkg/logger"
)

// Option configures a Server.
type Option func(*Server)

// WithAuth enables bearer-token authentication. Without it every protected
// route answers 401.
func WithAuth(a *Authenticator) Option {
	return func(s *Server) {
		s.auth = a
	}
}

// WithSubmitRate limits run submissions per client IP. A non-positive
// rate disables the limit.
func WithSubmitRate(perSecond float64, burst int) Option {
	return func(s *Server) {
		if perSecond <= 0 {
			s.submitRate = rate.Inf
			return
		}
		s.submitRate = rate.Limit(perSecond)
		s.submitBurst = max(burst, 1)
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}
