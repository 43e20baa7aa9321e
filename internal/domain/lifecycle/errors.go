package lifecycle

import "errors"

// Sentinel kinds for rejected transitions.
var (
	ErrInvalidTransition = errors.New("invalid transition")
	ErrIdentityMismatch  = errors.New("external identity does not match player")
	ErrAlreadyClaimed    = errors.New("run already claimed by player")
)
