package emotion

import (
	"errors"
	"log/slog"
)

// Config holds the parameters used to build a Model.
type Config struct {
	// Model asset
	ModelPath  string   // Path to the network weights (.onnx, .tflite, .pb, ...)
	LabelsPath string   // One label per line; empty uses the embedded FER-2013 labels
	Labels     []string // Explicit labels; takes precedence over LabelsPath

	// Execution
	Backend       Backend // Requested execution backend (default: cpu)
	NumThreads    int     // Intra-op threads for CPU execution, 0 lets the engine decide
	FallbackToCPU bool    // Retry on BackendCPU when the requested backend is unavailable

	Logger *slog.Logger
}

// DefaultConfig returns a Config for the bundled FER-2013 classifier on CPU.
func DefaultConfig() Config {
	return Config{
		ModelPath:     "models/fer2013.onnx",
		Backend:       BackendCPU,
		NumThreads:    4,
		FallbackToCPU: true,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.ModelPath == "" {
		return errors.New("emotion: model path required")
	}
	if !c.Backend.Valid() {
		return errors.New("emotion: unknown backend: " + c.Backend.String())
	}
	if c.NumThreads < 0 {
		return errors.New("emotion: thread count must not be negative")
	}
	return nil
}

// WithModelPath returns a copy with the model path set.
func (c Config) WithModelPath(path string) Config {
	c.ModelPath = path
	return c
}

// WithLabelsPath returns a copy with the label file path set.
func (c Config) WithLabelsPath(path string) Config {
	c.LabelsPath = path
	return c
}

// WithLabels returns a copy with explicit labels.
func (c Config) WithLabels(labels ...string) Config {
	c.Labels = append([]string(nil), labels...)
	return c
}

// WithBackend returns a copy with the backend set.
func (c Config) WithBackend(b Backend) Config {
	c.Backend = b
	return c
}

// WithNumThreads returns a copy with the thread count set.
func (c Config) WithNumThreads(n int) Config {
	c.NumThreads = n
	return c
}

// WithFallbackToCPU returns a copy with CPU fallback enabled or disabled.
func (c Config) WithFallbackToCPU(enabled bool) Config {
	c.FallbackToCPU = enabled
	return c
}

// WithLogger returns a copy with the logger set.
func (c Config) WithLogger(l *slog.Logger) Config {
	c.Logger = l
	return c
}
