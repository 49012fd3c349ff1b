// Package engine holds the model and detector flags shared by the commands.
package engine

import (
	"flag"
	"fmt"
	"log/slog"
	"strings"

	"github.com/teslashibe/go-fer/internal/config"
	"github.com/teslashibe/go-fer/pkg/detection"
	"github.com/teslashibe/go-fer/pkg/emotion"
	"github.com/teslashibe/go-fer/pkg/emotion/onnx"
	"github.com/teslashibe/go-fer/pkg/emotion/opencv"
	"github.com/teslashibe/go-fer/pkg/pipeline"
)

// Engine names.
const (
	OpenCV = "opencv"
	ONNX   = "onnx"
)

// Flags are the model and detector settings. Defaults come from FER_* variables.
type Flags struct {
	Model      string
	Labels     string
	Engine     string
	Backend    string
	Threads    int
	NoFallback bool
	OnnxLib    string
	Channels   int

	DetectorModel string
	DetectorConf  float64
}

// Register adds the flags to fs.
func Register(fs *flag.FlagSet) *Flags {
	ecfg := emotion.DefaultConfig()
	dcfg := detection.DefaultConfig()

	f := &Flags{}
	fs.StringVar(&f.Model, "model", config.String("MODEL", ecfg.ModelPath), "Emotion model file (FER_MODEL)")
	fs.StringVar(&f.Labels, "labels", config.String("LABELS", ""), "Label file, one per line; empty uses the FER-2013 labels (FER_LABELS)")
	fs.StringVar(&f.Engine, "engine", config.String("ENGINE", OpenCV), "Inference engine: opencv, onnx (FER_ENGINE)")
	fs.StringVar(&f.Backend, "backend", config.String("BACKEND", ecfg.Backend.String()), "Execution backend: cpu, gpu, accelerator (FER_BACKEND)")
	fs.IntVar(&f.Threads, "threads", config.Int("THREADS", ecfg.NumThreads), "CPU threads (FER_THREADS)")
	fs.BoolVar(&f.NoFallback, "no-fallback", !config.Bool("FALLBACK", true), "Fail instead of falling back to cpu")
	fs.StringVar(&f.OnnxLib, "onnx-lib", config.String("ONNX_LIB", ""), "onnxruntime shared library (FER_ONNX_LIB)")
	fs.IntVar(&f.Channels, "channels", config.Int("CHANNELS", opencv.DefaultConfig().Channels), "Model input channels for the opencv engine (FER_CHANNELS)")
	fs.StringVar(&f.DetectorModel, "detector", config.String("DETECTOR", dcfg.ModelPath), "YuNet face detector model (FER_DETECTOR)")
	fs.Float64Var(&f.DetectorConf, "detector-conf", config.Float("DETECTOR_CONF", dcfg.ConfidenceThresh), "Minimum face confidence (FER_DETECTOR_CONF)")
	return f
}

// EmotionConfig builds the model configuration.
func (f *Flags) EmotionConfig(logger *slog.Logger) (emotion.Config, error) {
	backend, err := emotion.ParseBackend(f.Backend)
	if err != nil {
		return emotion.Config{}, err
	}
	cfg := emotion.DefaultConfig().
		WithModelPath(f.Model).
		WithLabelsPath(f.Labels).
		WithBackend(backend).
		WithNumThreads(f.Threads).
		WithFallbackToCPU(!f.NoFallback).
		WithLogger(logger)
	return cfg, cfg.Validate()
}

// Opener returns the network opener for the selected engine.
func (f *Flags) Opener() (emotion.Opener, error) {
	switch strings.ToLower(f.Engine) {
	case OpenCV, "":
		cfg := opencv.DefaultConfig()
		cfg.Channels = f.Channels
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return opencv.Opener(cfg), nil
	case ONNX, "onnxruntime":
		return onnx.Opener(onnx.Config{LibraryPath: f.OnnxLib}), nil
	default:
		return nil, fmt.Errorf("engine: unknown engine %q", f.Engine)
	}
}

// Loader combines EmotionConfig and Opener.
func (f *Flags) Loader(logger *slog.Logger) (pipeline.ModelLoader, error) {
	cfg, err := f.EmotionConfig(logger)
	if err != nil {
		return nil, err
	}
	open, err := f.Opener()
	if err != nil {
		return nil, err
	}
	return pipeline.LoadModel(cfg, open), nil
}

// Detector opens the YuNet face detector.
func (f *Flags) Detector(logger *slog.Logger) (detection.Detector, error) {
	cfg := detection.DefaultConfig()
	cfg.ModelPath = f.DetectorModel
	cfg.ConfidenceThresh = f.DetectorConf
	return detection.NewYuNet(cfg, logger)
}
