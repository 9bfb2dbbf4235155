package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrRecordNotFound is returned when an ingredient cannot be found by
	// any tier of the nutrition lookup.
	ErrRecordNotFound = errors.New("nutrition record not found")

	// ErrLowConfidence is returned when the best canonical match scores
	// below the confidence threshold.
	ErrLowConfidence = errors.New("match confidence below threshold")

	// ErrInvalidRequest is returned when request parameters are invalid.
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrCacheMiss is returned when data is not found in cache.
	ErrCacheMiss = errors.New("cache miss")

	// ErrFoodDBFailure is returned when a canonical food database request fails.
	ErrFoodDBFailure = errors.New("food database request failed")

	// ErrResponseBlocked is returned when the flagged-item rate across a
	// whole plan exceeds the response-block threshold.
	ErrResponseBlocked = errors.New("plan blocked: flagged-item rate over threshold")

	// ErrValidationExhausted is returned when schema validation still fails
	// after the bounded regeneration retries.
	ErrValidationExhausted = errors.New("validation failed after retries")
)

// StructuralError reports a shape violation in the raw input (non-array
// input, empty plan, all meals invalid). Always fatal.
type StructuralError struct {
	Reason string
}

func (e *StructuralError) Error() string {
	return "structural error: " + e.Reason
}

// ViolationError wraps an invariant Violation for hard-fail call sites.
type ViolationError struct {
	Violation Violation
}

func (e *ViolationError) Error() string {
	return fmt.Sprintf("invariant %s violated: %s", e.Violation.InvariantID, e.Violation.Message)
}

// PipelineError is the typed failure the orchestrator propagates. It carries
// enough context to reproduce the failure without replaying the request.
type PipelineError struct {
	TraceID string
	Stage   string
	Errs    []string
	Cause   error
}

func (e *PipelineError) Error() string {
	msg := fmt.Sprintf("pipeline failed at %s (trace %s)", e.Stage, e.TraceID)
	if len(e.Errs) > 0 {
		msg += ": " + strings.Join(e.Errs, "; ")
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *PipelineError) Unwrap() error {
	return e.Cause
}
