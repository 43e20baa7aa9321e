package sweep

import "errors"

var (
	// ErrRunning is returned when a sweep is started while another one is in progress.
	ErrRunning = errors.New("sweep already running")
	// ErrUnknownPhase is returned when a checkpoint names a phase this version does not know.
	ErrUnknownPhase = errors.New("unknown sweep phase")
)
