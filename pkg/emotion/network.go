package emotion

import (
	"fmt"

	"github.com/teslashibe/go-fer/pkg/preprocess"
	"github.com/teslashibe/go-fer/pkg/tensor"
)

// TensorInfo is the declared shape and element type of a network tensor.
type TensorInfo struct {
	Shape []int
	Type  tensor.DataType
}

// NetworkOptions configure how an engine loads a network.
type NetworkOptions struct {
	Backend    Backend
	NumThreads int
}

// Network is a loaded model bound to one execution backend.
//
// Run performs a single forward pass reading in and writing out. Both buffers
// are allocated by Model from Input and Output and reused across calls.
type Network interface {
	Input() TensorInfo
	Output() TensorInfo
	Run(in, out *tensor.Buffer) error
	Close() error
}

// Opener loads the model at path. Implementations return a *LoadError for an
// unreadable or malformed file and wrap ErrBackendUnavailable when the requested
// backend cannot be initialized.
type Opener func(path string, opts NetworkOptions) (Network, error)

// inputGeometry derives the spatial size, channel depth and layout from an
// image input shape: {1,H,W,C}, {1,C,H,W}, {1,H,W} or {H,W}.
func inputGeometry(shape []int) (width, height, channels int, layout preprocess.Layout, err error) {
	switch len(shape) {
	case 4:
		if isChannelDim(shape[3]) {
			return shape[2], shape[1], shape[3], preprocess.NHWC, nil
		}
		if isChannelDim(shape[1]) {
			return shape[3], shape[2], shape[1], preprocess.NCHW, nil
		}
	case 3:
		if shape[0] == 1 {
			return shape[2], shape[1], 1, preprocess.NHWC, nil
		}
	case 2:
		return shape[1], shape[0], 1, preprocess.NHWC, nil
	}
	return 0, 0, 0, 0, fmt.Errorf("%w: unsupported image input shape %v", ErrShapeMismatch, shape)
}

func isChannelDim(d int) bool {
	return d == 1 || d == 3
}
