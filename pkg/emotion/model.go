// Package emotion classifies the dominant facial emotion of a face crop.
//
// A Model owns one loaded Network together with reusable input and output
// buffers. It is built once per session, used from a single goroutine and
// released with Close.
package emotion

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/teslashibe/go-fer/pkg/preprocess"
	"github.com/teslashibe/go-fer/pkg/tensor"
)

// Model is a loaded emotion classifier. It is not safe for concurrent use.
type Model struct {
	net     Network
	backend Backend
	labels  []string
	logger  *slog.Logger

	width, height int
	channels      int
	layout        preprocess.Layout

	input  *tensor.Buffer
	output *tensor.Buffer

	gray     []float32 // preprocessed single-channel plane
	expanded []float32 // gray replicated across channels, nil when channels == 1
	scaled   []float32 // input values rescaled for a uint8 input tensor
}

// New loads the labels and the network and allocates the reusable buffers.
func New(cfg Config, open Opener) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if open == nil {
		return nil, errors.New("emotion: opener required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default().With("component", "emotion")
	}

	labels, err := resolveLabels(cfg)
	if err != nil {
		return nil, err
	}

	backend := cfg.Backend
	opts := NetworkOptions{Backend: backend, NumThreads: cfg.NumThreads}
	net, err := open(cfg.ModelPath, opts)
	if err != nil && errors.Is(err, ErrBackendUnavailable) && cfg.FallbackToCPU && backend != BackendCPU {
		logger.Warn("backend unavailable, falling back to cpu", "requested", backend, "error", err)
		backend = BackendCPU
		opts.Backend = backend
		net, err = open(cfg.ModelPath, opts)
	}
	if err != nil {
		var le *LoadError
		if errors.Is(err, ErrBackendUnavailable) || errors.As(err, &le) {
			return nil, err
		}
		return nil, &LoadError{Path: cfg.ModelPath, Err: err}
	}

	m, err := newModel(net, backend, labels, logger)
	if err != nil {
		net.Close()
		return nil, err
	}

	logger.Info("model loaded",
		"path", cfg.ModelPath,
		"backend", backend,
		"input", fmt.Sprintf("%dx%dx%d", m.width, m.height, m.channels),
		"layout", m.layout,
		"labels", len(labels))
	return m, nil
}

func resolveLabels(cfg Config) ([]string, error) {
	switch {
	case len(cfg.Labels) > 0:
		return append([]string(nil), cfg.Labels...), nil
	case cfg.LabelsPath != "":
		return LoadLabels(cfg.LabelsPath)
	default:
		return DefaultLabels(), nil
	}
}

func newModel(net Network, backend Backend, labels []string, logger *slog.Logger) (*Model, error) {
	in, out := net.Input(), net.Output()

	width, height, channels, layout, err := inputGeometry(in.Shape)
	if err != nil {
		return nil, err
	}

	input, err := tensor.New(in.Shape, in.Type)
	if err != nil {
		return nil, fmt.Errorf("emotion: input tensor: %w", err)
	}
	output, err := tensor.New(out.Shape, out.Type)
	if err != nil {
		return nil, fmt.Errorf("emotion: output tensor: %w", err)
	}

	last := out.Shape[len(out.Shape)-1]
	if last != len(labels) || output.Capacity() != last {
		return nil, &tensor.ShapeError{Shape: out.Shape, Want: last, Got: len(labels), Labels: true}
	}
	if input.Capacity() != width*height*channels {
		return nil, &tensor.ShapeError{Shape: in.Shape, Want: input.Capacity(), Got: width * height * channels}
	}

	m := &Model{
		net:      net,
		backend:  backend,
		labels:   labels,
		logger:   logger,
		width:    width,
		height:   height,
		channels: channels,
		layout:   layout,
		input:    input,
		output:   output,
		gray:     make([]float32, width*height),
	}
	if channels > 1 {
		m.expanded = make([]float32, width*height*channels)
	}
	if in.Type == tensor.Uint8 {
		m.scaled = make([]float32, width*height*channels)
	}
	return m, nil
}

// Infer classifies one face crop. The returned Scores has one entry per label
// in model-output order.
func (m *Model) Infer(img image.Image) (Scores, error) {
	if err := m.Prepare(img); err != nil {
		return nil, err
	}
	return m.Run()
}

// Prepare preprocesses img into the input buffer. Every input position is
// overwritten.
func (m *Model) Prepare(img image.Image) error {
	if m.net == nil {
		return ErrClosed
	}

	if err := preprocess.PreprocessInto(m.gray, img, m.width, m.height); err != nil {
		return err
	}

	values := m.gray
	if m.expanded != nil {
		if err := preprocess.Expand(m.expanded, m.gray, m.width, m.height, m.channels, m.layout); err != nil {
			return err
		}
		values = m.expanded
	}
	// Quantized inputs take the [0,1] plane as 0..255.
	if m.scaled != nil {
		for i, v := range values {
			m.scaled[i] = v * 255
		}
		values = m.scaled
	}
	return m.input.LoadArray(values)
}

// Run performs one forward pass over the prepared input and reads back the
// scores. The output buffer is cleared first.
func (m *Model) Run() (Scores, error) {
	if m.net == nil {
		return nil, ErrClosed
	}

	m.output.Reset()
	start := time.Now()
	if err := m.net.Run(m.input, m.output); err != nil {
		return nil, fmt.Errorf("emotion: forward pass: %w", err)
	}
	m.logger.Debug("inference", "backend", m.backend, "latency", time.Since(start))

	raw := m.output.Float32s()
	scores := make(Scores, len(m.labels))
	for i, label := range m.labels {
		v := raw[i]
		if m.output.DataType() == tensor.Uint8 {
			v /= 255
		}
		scores[i] = Score{Label: label, Value: v}
	}
	return scores, nil
}

// Close releases the network and its backend. It is safe to call more than once.
func (m *Model) Close() error {
	if m.net == nil {
		return nil
	}
	err := m.net.Close()
	m.net = nil
	return err
}

// InputSize returns the model input width and height.
func (m *Model) InputSize() (width, height int) {
	return m.width, m.height
}

// Channels returns the model input channel depth.
func (m *Model) Channels() int {
	return m.channels
}

// Labels returns a copy of the labels in model-output order.
func (m *Model) Labels() []string {
	return append([]string(nil), m.labels...)
}

// Backend returns the backend the network was loaded on.
func (m *Model) Backend() Backend {
	return m.backend
}
