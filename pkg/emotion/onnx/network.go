// Package onnx runs emotion networks on ONNX Runtime.
package onnx

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/teslashibe/go-fer/pkg/emotion"
	"github.com/teslashibe/go-fer/pkg/tensor"
	ort "github.com/yalue/onnxruntime_go"
)

// Config locates the runtime library and selects the tensors to bind.
type Config struct {
	LibraryPath string // onnxruntime shared library; empty searches the usual locations
	InputName   string // defaults to the first model input
	OutputName  string // defaults to the first model output
}

var (
	envMu   sync.Mutex
	envPath string
)

// initEnvironment initializes the process-wide ONNX Runtime environment once.
func initEnvironment(libPath string) error {
	envMu.Lock()
	defer envMu.Unlock()

	if ort.IsInitialized() {
		if libPath != "" && envPath != "" && libPath != envPath {
			return fmt.Errorf("onnx: runtime already initialized from %s", envPath)
		}
		return nil
	}

	if libPath == "" {
		libPath = findLibrary()
	}
	if libPath != "" {
		ort.SetSharedLibraryPath(libPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("onnx: initialize runtime: %w", err)
	}
	envPath = libPath
	return nil
}

func findLibrary() string {
	var candidates []string
	switch runtime.GOOS {
	case "darwin":
		candidates = []string{"/opt/homebrew/lib/libonnxruntime.dylib", "/usr/local/lib/libonnxruntime.dylib"}
	case "windows":
		candidates = []string{"onnxruntime.dll"}
	default:
		candidates = []string{
			"/usr/local/lib/libonnxruntime.so",
			"/usr/lib/libonnxruntime.so",
			"/opt/onnxruntime/lib/libonnxruntime.so",
		}
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Network is an emotion.Network backed by an ort.AdvancedSession bound to
// persistent input and output tensors.
type Network struct {
	session *ort.AdvancedSession
	in      binding
	out     binding
	closed  bool
}

// binding is one persistent ort tensor and its typed view.
type binding struct {
	info  emotion.TensorInfo
	value ort.Value
	f32   []float32
	u8    []uint8
}

// Opener returns an emotion.Opener that loads networks with cfg.
func Opener(cfg Config) emotion.Opener {
	return func(path string, opts emotion.NetworkOptions) (emotion.Network, error) {
		return Open(path, opts, cfg)
	}
}

// Open loads the model at path, appends the execution provider for the
// requested backend and creates the session.
func Open(path string, opts emotion.NetworkOptions, cfg Config) (*Network, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, &emotion.LoadError{Path: path, Err: err}
	}
	if err := initEnvironment(cfg.LibraryPath); err != nil {
		return nil, err
	}

	inputs, outputs, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return nil, &emotion.LoadError{Path: path, Err: err}
	}
	inInfo, err := pick(inputs, cfg.InputName)
	if err != nil {
		return nil, &emotion.LoadError{Path: path, Err: fmt.Errorf("input: %w", err)}
	}
	outInfo, err := pick(outputs, cfg.OutputName)
	if err != nil {
		return nil, &emotion.LoadError{Path: path, Err: fmt.Errorf("output: %w", err)}
	}

	options, err := sessionOptions(opts)
	if err != nil {
		return nil, err
	}
	defer options.Destroy()

	in, err := newBinding(inInfo)
	if err != nil {
		return nil, &emotion.LoadError{Path: path, Err: err}
	}
	out, err := newBinding(outInfo)
	if err != nil {
		in.value.Destroy()
		return nil, &emotion.LoadError{Path: path, Err: err}
	}

	session, err := ort.NewAdvancedSession(path,
		[]string{inInfo.Name},
		[]string{outInfo.Name},
		[]ort.Value{in.value},
		[]ort.Value{out.value},
		options,
	)
	if err != nil {
		in.value.Destroy()
		out.value.Destroy()
		if opts.Backend != emotion.BackendCPU {
			return nil, fmt.Errorf("%w: %s: %v", emotion.ErrBackendUnavailable, opts.Backend, err)
		}
		return nil, &emotion.LoadError{Path: path, Err: err}
	}

	return &Network{session: session, in: in, out: out}, nil
}

func pick(infos []ort.InputOutputInfo, name string) (ort.InputOutputInfo, error) {
	if len(infos) == 0 {
		return ort.InputOutputInfo{}, errors.New("model declares no tensors")
	}
	if name == "" {
		return infos[0], nil
	}
	for _, info := range infos {
		if info.Name == name {
			return info, nil
		}
	}
	return ort.InputOutputInfo{}, fmt.Errorf("no tensor named %q", name)
}

func sessionOptions(opts emotion.NetworkOptions) (*ort.SessionOptions, error) {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("onnx: session options: %w", err)
	}
	if opts.NumThreads > 0 {
		if err := options.SetIntraOpNumThreads(opts.NumThreads); err != nil {
			options.Destroy()
			return nil, fmt.Errorf("onnx: set threads: %w", err)
		}
	}

	switch opts.Backend {
	case emotion.BackendGPU:
		cuda, err := ort.NewCUDAProviderOptions()
		if err == nil {
			err = options.AppendExecutionProviderCUDA(cuda)
			cuda.Destroy()
		}
		if err != nil {
			options.Destroy()
			return nil, fmt.Errorf("%w: cuda: %v", emotion.ErrBackendUnavailable, err)
		}
	case emotion.BackendAccelerator:
		if err := options.AppendExecutionProviderCoreML(0); err != nil {
			options.Destroy()
			return nil, fmt.Errorf("%w: coreml: %v", emotion.ErrBackendUnavailable, err)
		}
	}
	return options, nil
}

// resolveShape replaces dynamic dimensions with 1.
func resolveShape(s ort.Shape) []int {
	shape := make([]int, len(s))
	for i, d := range s {
		if d <= 0 {
			d = 1
		}
		shape[i] = int(d)
	}
	return shape
}

func dataType(t ort.TensorElementDataType) (tensor.DataType, error) {
	switch t {
	case ort.TensorElementDataTypeFloat:
		return tensor.Float32, nil
	case ort.TensorElementDataTypeUint8:
		return tensor.Uint8, nil
	default:
		return 0, fmt.Errorf("unsupported element type %v", t)
	}
}

func newBinding(info ort.InputOutputInfo) (binding, error) {
	dt, err := dataType(info.DataType)
	if err != nil {
		return binding{}, fmt.Errorf("%s: %w", info.Name, err)
	}
	shape := resolveShape(info.Dimensions)

	dims := make([]int64, len(shape))
	for i, d := range shape {
		dims[i] = int64(d)
	}

	b := binding{info: emotion.TensorInfo{Shape: shape, Type: dt}}
	if dt == tensor.Float32 {
		t, err := ort.NewEmptyTensor[float32](ort.NewShape(dims...))
		if err != nil {
			return binding{}, fmt.Errorf("%s: %w", info.Name, err)
		}
		b.value, b.f32 = t, t.GetData()
		return b, nil
	}
	t, err := ort.NewEmptyTensor[uint8](ort.NewShape(dims...))
	if err != nil {
		return binding{}, fmt.Errorf("%s: %w", info.Name, err)
	}
	b.value, b.u8 = t, t.GetData()
	return b, nil
}

// Input returns the declared input shape with dynamic dimensions set to 1.
func (n *Network) Input() emotion.TensorInfo { return n.in.info }

// Output returns the declared output shape with dynamic dimensions set to 1.
func (n *Network) Output() emotion.TensorInfo { return n.out.info }

// Run copies in into the session input tensor, runs the session and copies
// the output tensor into out.
func (n *Network) Run(in, out *tensor.Buffer) error {
	if n.closed {
		return emotion.ErrClosed
	}

	if n.in.f32 != nil {
		if in.Capacity() != len(n.in.f32) {
			return &tensor.ShapeError{Shape: n.in.info.Shape, Want: len(n.in.f32), Got: in.Capacity()}
		}
		copy(n.in.f32, in.Float32s())
	} else {
		if len(in.Bytes()) != len(n.in.u8) {
			return &tensor.ShapeError{Shape: n.in.info.Shape, Want: len(n.in.u8), Got: len(in.Bytes()), Bytes: true}
		}
		copy(n.in.u8, in.Bytes())
	}

	if err := n.session.Run(); err != nil {
		return fmt.Errorf("onnx: run: %w", err)
	}

	if n.out.f32 != nil {
		return out.LoadArray(n.out.f32)
	}
	return out.LoadBytes(n.out.u8)
}

// Close destroys the session and its tensors.
func (n *Network) Close() error {
	if n.closed {
		return nil
	}
	n.closed = true
	err := n.session.Destroy()
	n.in.value.Destroy()
	n.out.value.Destroy()
	return err
}
