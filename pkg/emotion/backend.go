package emotion

import (
	"fmt"
	"strings"
)

// Backend selects where the forward pass executes. It only affects latency,
// never the numeric contract of Infer.
type Backend int

const (
	// BackendCPU runs on the host CPU and is always available.
	BackendCPU Backend = iota
	// BackendGPU runs on a GPU (CUDA).
	BackendGPU
	// BackendAccelerator runs on a platform neural accelerator (OpenVINO VPU, CoreML).
	BackendAccelerator
)

// String returns the flag spelling of the backend.
func (b Backend) String() string {
	switch b {
	case BackendCPU:
		return "cpu"
	case BackendGPU:
		return "gpu"
	case BackendAccelerator:
		return "accelerator"
	default:
		return fmt.Sprintf("backend(%d)", int(b))
	}
}

// Valid reports whether b is a known backend.
func (b Backend) Valid() bool {
	return b >= BackendCPU && b <= BackendAccelerator
}

// MarshalText implements encoding.TextMarshaler.
func (b Backend) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (b *Backend) UnmarshalText(text []byte) error {
	parsed, err := ParseBackend(string(text))
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// ParseBackend parses a backend name. Common aliases are accepted.
func ParseBackend(s string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "cpu":
		return BackendCPU, nil
	case "gpu", "cuda":
		return BackendGPU, nil
	case "accelerator", "nnapi", "npu", "vpu", "coreml", "openvino":
		return BackendAccelerator, nil
	default:
		return BackendCPU, fmt.Errorf("emotion: unknown backend %q (want cpu, gpu or accelerator)", s)
	}
}
