// Package tensor provides fixed-shape numeric buffers used as model input and output.
//
// A Buffer is declared once from a shape and an element type and is then reused:
// loading values overwrites the previous contents in place and never reallocates.
package tensor

import (
	"fmt"
	"math"
	"strings"
	"unsafe"
)

// DataType is the element type of a Buffer.
type DataType int

const (
	// Float32 stores 32-bit IEEE floats.
	Float32 DataType = iota
	// Uint8 stores quantized 8-bit values.
	Uint8
)

// String returns the lowercase type name.
func (d DataType) String() string {
	switch d {
	case Float32:
		return "float32"
	case Uint8:
		return "uint8"
	default:
		return fmt.Sprintf("datatype(%d)", int(d))
	}
}

// Size returns the width of one element in bytes.
func (d DataType) Size() int {
	if d == Uint8 {
		return 1
	}
	return 4
}

// ParseDataType parses "float32" or "uint8".
func ParseDataType(s string) (DataType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "float32", "float", "f32":
		return Float32, nil
	case "uint8", "u8":
		return Uint8, nil
	default:
		return 0, fmt.Errorf("tensor: unknown data type %q", s)
	}
}

// Buffer is a fixed-shape, reusable numeric buffer.
// It is not safe for concurrent use.
type Buffer struct {
	shape    []int
	dtype    DataType
	capacity int

	raw []byte    // backing storage, always len(capacity*dtype.Size())
	f32 []float32 // view over raw when dtype is Float32
}

// New allocates a zeroed buffer for the given shape and element type.
func New(shape []int, dtype DataType) (*Buffer, error) {
	if len(shape) == 0 {
		return nil, fmt.Errorf("tensor: empty shape")
	}
	if dtype != Float32 && dtype != Uint8 {
		return nil, fmt.Errorf("tensor: unsupported data type %v", dtype)
	}

	capacity := 1
	for i, d := range shape {
		if d <= 0 {
			return nil, fmt.Errorf("tensor: dimension %d is %d, must be positive", i, d)
		}
		capacity *= d
	}

	b := &Buffer{
		shape:    append([]int(nil), shape...),
		dtype:    dtype,
		capacity: capacity,
	}

	if dtype == Float32 {
		b.f32 = make([]float32, capacity)
		b.raw = unsafe.Slice((*byte)(unsafe.Pointer(&b.f32[0])), capacity*4)
	} else {
		b.raw = make([]byte, capacity)
	}

	return b, nil
}

// Shape returns a copy of the declared dimensions.
func (b *Buffer) Shape() []int {
	return append([]int(nil), b.shape...)
}

// DataType returns the element type.
func (b *Buffer) DataType() DataType {
	return b.dtype
}

// Capacity returns the number of elements.
func (b *Buffer) Capacity() int {
	return b.capacity
}

// LoadArray overwrites the buffer with values.
// The value count must equal Capacity. Uint8 buffers clamp to [0,255] and truncate.
func (b *Buffer) LoadArray(values []float32) error {
	if len(values) != b.capacity {
		return &ShapeError{Shape: b.Shape(), Want: b.capacity, Got: len(values)}
	}

	if b.dtype == Float32 {
		copy(b.f32, values)
		return nil
	}

	for i, v := range values {
		b.raw[i] = toUint8(v)
	}
	return nil
}

// LoadBytes overwrites the buffer with raw element bytes, as produced by an inference engine.
func (b *Buffer) LoadBytes(data []byte) error {
	if len(data) != len(b.raw) {
		return &ShapeError{Shape: b.Shape(), Want: len(b.raw), Got: len(data), Bytes: true}
	}
	copy(b.raw, data)
	return nil
}

// Bytes exposes the raw backing storage in host byte order.
// Writes through the returned slice modify the buffer.
func (b *Buffer) Bytes() []byte {
	return b.raw
}

// Float32s returns the values as float32.
// For Float32 buffers this is a live view; for Uint8 buffers it is a converted copy.
func (b *Buffer) Float32s() []float32 {
	if b.dtype == Float32 {
		return b.f32
	}
	out := make([]float32, b.capacity)
	for i, v := range b.raw {
		out[i] = float32(v)
	}
	return out
}

// Reset zeroes the buffer.
func (b *Buffer) Reset() {
	clear(b.raw)
}

// Labeled maps each label to the value at the same index.
// The number of labels must match the last dimension and the buffer must hold exactly one row.
func (b *Buffer) Labeled(labels []string) (map[string]float32, error) {
	last := b.shape[len(b.shape)-1]
	if len(labels) != last || last != b.capacity {
		return nil, &ShapeError{Shape: b.Shape(), Want: last, Got: len(labels), Labels: true}
	}

	values := b.Float32s()
	out := make(map[string]float32, len(labels))
	for i, label := range labels {
		out[label] = values[i]
	}
	return out, nil
}

func toUint8(v float32) byte {
	switch {
	case math.IsNaN(float64(v)) || v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return byte(v)
	}
}
