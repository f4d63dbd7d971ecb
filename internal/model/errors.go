package model

import (
	"errors"
	"fmt"
)

// Sentinel errors for the run lifecycle and registry boundaries.
// Matched with errors.Is across package boundaries.
var (
	// ErrInvalidTransition is returned when a caller attempts an illegal run
	// state change, including any mutation of a terminal run.
	ErrInvalidTransition = errors.New("invalid run state transition")

	// ErrNotFound is returned by registry lookups for unknown ids.
	ErrNotFound = errors.New("not found")
)

func invalidTransition(from, to RunStatus) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

// GenerationError indicates that an LLM stage call failed: the backend was
// unreachable, timed out, or returned content that could not be parsed into
// the expected structure. The orchestrator converts it into a terminal FAILED
// transition; it is never retried at the orchestration layer.
type GenerationError struct {
	Stage string // "outline" or "slide"
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed at %s stage: %v", e.Stage, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// NewGenerationError wraps err as a stage failure.
func NewGenerationError(stage string, err error) *GenerationError {
	return &GenerationError{Stage: stage, Err: err}
}

// ValidationError indicates that generated content failed structural
// validation against the document model. For run-state purposes it is
// handled identically to GenerationError.
type ValidationError struct {
	Subject string // e.g. "slide s3", "element s3_e1"
	Err     error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Subject, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// NewValidationError wraps err as a structural validation failure.
func NewValidationError(subject string, err error) *ValidationError {
	return &ValidationError{Subject: subject, Err: err}
}
