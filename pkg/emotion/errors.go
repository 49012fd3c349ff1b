package emotion

import (
	"errors"
	"fmt"

	"github.com/teslashibe/go-fer/pkg/tensor"
)

var (
	// ErrLoad matches every *LoadError.
	ErrLoad = errors.New("emotion: load failed")

	// ErrBackendUnavailable is returned when an accelerated backend cannot be
	// initialized. Retrying with BackendCPU is expected to succeed.
	ErrBackendUnavailable = errors.New("emotion: backend unavailable")

	// ErrClosed is returned by Infer after Close.
	ErrClosed = errors.New("emotion: model closed")

	// ErrNoLabels is returned when a label file contains no labels.
	ErrNoLabels = errors.New("emotion: no labels")

	// ErrShapeMismatch is returned when the model, its labels and the
	// preprocessed input disagree on size.
	ErrShapeMismatch = tensor.ErrShapeMismatch
)

// LoadError reports an unreadable or malformed model or label asset.
type LoadError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	return fmt.Sprintf("emotion: load %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *LoadError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrLoad.
func (e *LoadError) Is(target error) bool {
	return target == ErrLoad
}
