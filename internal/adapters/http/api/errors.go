package api

import (
	"errors"
	"net/http"

	"github.com/okian/runboard/internal/adapters/export"
	service "github.com/okian/runboard/internal/app"
	"github.com/okian/runboard/internal/domain/grouping"
	"github.com/okian/runboard/internal/domain/lifecycle"
	"github.com/okian/runboard/internal/domain/model"
	"github.com/okian/runboard/internal/domain/sweep"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrUnauthorized = errors.New("missing or invalid bearer token")
	ErrForbidden    = errors.New("insufficient role")
	ErrRateLimited  = errors.New("too many requests")
)

type errorResponse struct {
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	Problems []string `json:"problems,omitempty"`
	Failed   []string `json:"failed,omitempty"`
}

// classify maps an error onto a status and a stable code.
func classify(err error) (int, string) { //nolint:cyclop // flat taxonomy switch
	switch {
	case errors.Is(err, ErrBadRequest), errors.Is(err, grouping.ErrMalformedKey),
		errors.Is(err, service.ErrProtectedEdit):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest, "validation_failed"
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, ErrForbidden), errors.Is(err, lifecycle.ErrIdentityMismatch):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, export.ErrNoData):
		return http.StatusNotFound, "no_data"
	case errors.Is(err, lifecycle.ErrInvalidTransition), errors.Is(err, lifecycle.ErrAlreadyClaimed),
		errors.Is(err, service.ErrPlayerExists), errors.Is(err, sweep.ErrRunning):
		return http.StatusConflict, "conflict"
	case errors.Is(err, model.ErrInconsistentGroup):
		return http.StatusUnprocessableEntity, "inconsistent_group"
	case errors.Is(err, model.ErrPartialBatch):
		return http.StatusMultiStatus, "partial_batch"
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
