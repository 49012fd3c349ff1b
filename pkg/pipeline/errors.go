package pipeline

import (
	"errors"
	"fmt"
)

// Common errors returned by the pipeline.
var (
	ErrLaneStopped   = errors.New("pipeline: lane stopped")
	ErrSessionClosed = errors.New("pipeline: session closed")
	ErrNotActive     = errors.New("pipeline: no active session")
	ErrDetection     = errors.New("pipeline: face detection failed")
)

// DetectionError wraps a failure reported by the face detection service.
// The job fails but the session stays usable.
type DetectionError struct {
	Err error
}

// Error implements the error interface.
func (e *DetectionError) Error() string {
	return fmt.Sprintf("pipeline: face detection failed: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *DetectionError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrDetection.
func (e *DetectionError) Is(target error) bool {
	return target == ErrDetection
}
