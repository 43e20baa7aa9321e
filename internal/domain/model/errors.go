package model

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel kinds for domain errors. The typed errors below match them via errors.Is.
var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrPartialBatch      = errors.New("partial batch failure")
	ErrInconsistentGroup = errors.New("inconsistent group state")
	ErrUnknownField      = errors.New("unknown field")
	ErrFieldType         = errors.New("invalid field type")
)

// ValidationError reports every problem found in a submitted run.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid run: " + strings.Join(e.Problems, "; ")
}

// Is matches ErrValidation.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NotFoundError reports a missing run, player or reference.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// Is matches ErrNotFound.
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// NotFound builds a NotFoundError.
func NotFound(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

// PartialBatchFailure reports which records of a bulk update were not written.
type PartialBatchFailure struct {
	Updated int      `json:"updated"`
	Failed  []string `json:"failed"`
	Errors  []string `json:"errors"`
}

func (e *PartialBatchFailure) Error() string {
	return fmt.Sprintf("%d updated, %d failed: %s", e.Updated, len(e.Failed), strings.Join(e.Errors, "; "))
}

// Is matches ErrPartialBatch.
func (e *PartialBatchFailure) Is(target error) bool { return target == ErrPartialBatch }

// InconsistentGroupState reports a run that cannot be placed in its group,
// e.g. an individual-level run without a level.
type InconsistentGroupState struct {
	RunID  string
	Reason string
}

func (e *InconsistentGroupState) Error() string {
	return fmt.Sprintf("run %q: %s", e.RunID, e.Reason)
}

// Is matches ErrInconsistentGroup.
func (e *InconsistentGroupState) Is(target error) bool { return target == ErrInconsistentGroup }
