// Package opencv runs emotion networks on the OpenCV dnn module.
//
// Any format cv::dnn::readNet understands can be loaded (.onnx, .tflite, .pb,
// Caffe). OpenCV does not report declared input shapes, so the input geometry
// comes from Config and the output shape is learned from a warm-up pass.
package opencv

import (
	"errors"
	"fmt"
	"os"

	"github.com/teslashibe/go-fer/pkg/emotion"
	"github.com/teslashibe/go-fer/pkg/tensor"
	"gocv.io/x/gocv"
)

// Config holds the input geometry of the network.
type Config struct {
	InputWidth  int // Model input width (default 48)
	InputHeight int // Model input height (default 48)
	Channels    int // 1 for grayscale models, 3 for RGB models
}

// DefaultConfig returns the geometry of the FER-2013 classifier.
func DefaultConfig() Config {
	return Config{
		InputWidth:  48,
		InputHeight: 48,
		Channels:    1,
	}
}

// Validate checks the configuration for errors.
func (c Config) Validate() error {
	if c.InputWidth <= 0 || c.InputHeight <= 0 {
		return errors.New("opencv: input size must be positive")
	}
	if c.Channels != 1 && c.Channels != 3 {
		return fmt.Errorf("opencv: channels must be 1 or 3, got %d", c.Channels)
	}
	return nil
}

// Network is an emotion.Network backed by gocv.Net.
type Network struct {
	net    gocv.Net
	blob   gocv.Mat // persistent NCHW input blob
	input  emotion.TensorInfo
	output emotion.TensorInfo
	closed bool
}

// Opener returns an emotion.Opener that loads networks with cfg.
func Opener(cfg Config) emotion.Opener {
	return func(path string, opts emotion.NetworkOptions) (emotion.Network, error) {
		return Open(path, opts, cfg)
	}
}

// Open loads the network at path and binds it to the requested backend.
func Open(path string, opts emotion.NetworkOptions, cfg Config) (*Network, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err != nil {
		return nil, &emotion.LoadError{Path: path, Err: err}
	}

	net := gocv.ReadNet(path, "")
	if net.Empty() {
		net.Close()
		return nil, &emotion.LoadError{Path: path, Err: errors.New("unsupported or malformed network")}
	}

	backend, target := preferable(opts.Backend)
	net.SetPreferableBackend(backend)
	net.SetPreferableTarget(target)

	shape := []int{1, cfg.Channels, cfg.InputHeight, cfg.InputWidth}
	n := &Network{
		net:   net,
		blob:  gocv.NewMatWithSizes(shape, gocv.MatTypeCV32F),
		input: emotion.TensorInfo{Shape: shape, Type: tensor.Float32},
	}

	if err := n.warmUp(path, opts.Backend); err != nil {
		n.Close()
		return nil, err
	}
	return n, nil
}

// preferable maps a backend onto the OpenCV backend/target pair.
func preferable(b emotion.Backend) (gocv.NetBackendType, gocv.NetTargetType) {
	switch b {
	case emotion.BackendGPU:
		return gocv.NetBackendCUDA, gocv.NetTargetCUDA
	case emotion.BackendAccelerator:
		return gocv.NetBackendOpenVINO, gocv.NetTargetVPU
	default:
		return gocv.NetBackendDefault, gocv.NetTargetCPU
	}
}

// warmUp runs one pass on a zero blob. A failure on an accelerated backend is
// reported as ErrBackendUnavailable so the caller can retry on the CPU.
func (n *Network) warmUp(path string, b emotion.Backend) error {
	zero, err := n.blob.DataPtrFloat32()
	if err != nil {
		return fmt.Errorf("opencv: input blob: %w", err)
	}
	clear(zero)

	out, err := n.forward()
	if err == nil && out.Empty() {
		out.Close()
		err = errors.New("empty output")
	}
	if err != nil {
		if b != emotion.BackendCPU {
			return fmt.Errorf("%w: %s: %v", emotion.ErrBackendUnavailable, b, err)
		}
		return &emotion.LoadError{Path: path, Err: err}
	}
	defer out.Close()

	n.output = emotion.TensorInfo{Shape: []int{1, out.Total()}, Type: tensor.Float32}
	return nil
}

func (n *Network) forward() (out gocv.Mat, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("forward: %v", r)
		}
	}()
	n.net.SetInput(n.blob, "")
	return n.net.Forward(""), nil
}

// Input returns the configured input shape in NCHW order.
func (n *Network) Input() emotion.TensorInfo { return n.input }

// Output returns the flattened output shape observed during warm-up.
func (n *Network) Output() emotion.TensorInfo { return n.output }

// Run copies in into the persistent blob, runs a forward pass and copies the
// result into out.
func (n *Network) Run(in, out *tensor.Buffer) error {
	if n.closed {
		return emotion.ErrClosed
	}

	dst, err := n.blob.DataPtrFloat32()
	if err != nil {
		return fmt.Errorf("opencv: input blob: %w", err)
	}
	if in.Capacity() != len(dst) {
		return &tensor.ShapeError{Shape: n.input.Shape, Want: len(dst), Got: in.Capacity()}
	}
	copy(dst, in.Float32s())

	res, err := n.forward()
	if err != nil {
		return fmt.Errorf("opencv: %w", err)
	}
	defer res.Close()

	data, err := res.DataPtrFloat32()
	if err != nil {
		return fmt.Errorf("opencv: read output: %w", err)
	}
	return out.LoadArray(data)
}

// Close releases the blob and the network.
func (n *Network) Close() error {
	if n.closed {
		return nil
	}
	n.closed = true
	n.blob.Close()
	return n.net.Close()
}
