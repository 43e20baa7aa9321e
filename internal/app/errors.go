package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrNotStarted    = errors.New("service not started")
	ErrPlayerExists  = errors.New("player already registered")
	ErrProtectedEdit = errors.New("field can only be changed through a transition")
)
