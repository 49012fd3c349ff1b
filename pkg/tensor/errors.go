package tensor

import (
	"errors"
	"fmt"
)

// ErrShapeMismatch is returned when a value count does not match a buffer's declared shape.
var ErrShapeMismatch = errors.New("tensor: shape mismatch")

// ShapeError describes a shape mismatch in detail.
type ShapeError struct {
	Shape  []int
	Want   int
	Got    int
	Bytes  bool // Want/Got count bytes instead of elements
	Labels bool // Got counts labels
}

// Error implements the error interface.
func (e *ShapeError) Error() string {
	unit := "values"
	switch {
	case e.Bytes:
		unit = "bytes"
	case e.Labels:
		unit = "labels"
	}
	return fmt.Sprintf("tensor: shape mismatch for %v: want %d %s, got %d", e.Shape, e.Want, unit, e.Got)
}

// Is reports whether target is ErrShapeMismatch.
func (e *ShapeError) Is(target error) bool {
	return target == ErrShapeMismatch
}
