package emotion

import (
	"errors"
	"sync"

	"github.com/teslashibe/go-fer/pkg/tensor"
)

// MockNetwork implements Network for testing.
type MockNetwork struct {
	InputInfo  TensorInfo
	OutputInfo TensorInfo

	// RunFunc is called when Run is invoked. The default copies Outputs into out.
	RunFunc func(in, out *tensor.Buffer) error

	// CloseFunc is called when Close is invoked.
	CloseFunc func() error

	// Outputs are written by the default RunFunc.
	Outputs []float32

	// Unavailable lists backends MockOpener refuses with ErrBackendUnavailable.
	Unavailable map[Backend]bool

	mu        sync.Mutex
	runs      int
	closes    int
	lastInput []float32
	opened    []NetworkOptions
}

// NewMockNetwork creates a float32 network with a {1,height,width,1} input and
// a {1,len(outputs)} output that always returns outputs.
func NewMockNetwork(width, height int, outputs ...float32) *MockNetwork {
	return &MockNetwork{
		InputInfo:  TensorInfo{Shape: []int{1, height, width, 1}, Type: tensor.Float32},
		OutputInfo: TensorInfo{Shape: []int{1, len(outputs)}, Type: tensor.Float32},
		Outputs:    append([]float32(nil), outputs...),
	}
}

// MockOpener returns an Opener that hands out n.
func MockOpener(n *MockNetwork) Opener {
	return func(path string, opts NetworkOptions) (Network, error) {
		n.mu.Lock()
		n.opened = append(n.opened, opts)
		n.mu.Unlock()

		if n.Unavailable[opts.Backend] {
			return nil, ErrBackendUnavailable
		}
		return n, nil
	}
}

// Input returns InputInfo.
func (n *MockNetwork) Input() TensorInfo { return n.InputInfo }

// Output returns OutputInfo.
func (n *MockNetwork) Output() TensorInfo { return n.OutputInfo }

// Run records the input and calls RunFunc.
func (n *MockNetwork) Run(in, out *tensor.Buffer) error {
	n.mu.Lock()
	n.runs++
	n.lastInput = append(n.lastInput[:0], in.Float32s()...)
	n.mu.Unlock()

	if n.RunFunc != nil {
		return n.RunFunc(in, out)
	}
	if n.Outputs == nil {
		return errors.New("emotion: mock has no outputs")
	}
	return out.LoadArray(n.Outputs)
}

// Close calls CloseFunc and records the call.
func (n *MockNetwork) Close() error {
	n.mu.Lock()
	n.closes++
	n.mu.Unlock()

	if n.CloseFunc != nil {
		return n.CloseFunc()
	}
	return nil
}

// Runs returns the number of forward passes.
func (n *MockNetwork) Runs() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.runs
}

// Closes returns the number of Close calls.
func (n *MockNetwork) Closes() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.closes
}

// LastInput returns a copy of the input of the most recent Run.
func (n *MockNetwork) LastInput() []float32 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]float32(nil), n.lastInput...)
}

// Opened returns the options of every open attempt, in order.
func (n *MockNetwork) Opened() []NetworkOptions {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]NetworkOptions(nil), n.opened...)
}
