package engine

import (
	"errors"
	"flag"
	"testing"

	"github.com/teslashibe/go-fer/pkg/emotion"
)

func parse(t *testing.T, args ...string) *Flags {
	t.Helper()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	f := Register(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return f
}

func TestRegister_Defaults(t *testing.T) {
	f := parse(t)
	if f.Engine != OpenCV {
		t.Errorf("Engine = %q, want opencv", f.Engine)
	}
	if f.Backend != "cpu" || f.Threads != 4 || f.NoFallback {
		t.Errorf("flags = %+v", f)
	}
}

func TestRegister_Env(t *testing.T) {
	t.Setenv("FER_ENGINE", "onnx")
	t.Setenv("FER_THREADS", "2")
	t.Setenv("FER_FALLBACK", "false")

	f := parse(t)
	if f.Engine != ONNX || f.Threads != 2 || !f.NoFallback {
		t.Errorf("flags = %+v", f)
	}

	// Flags override the environment.
	f = parse(t, "-engine", "opencv", "-threads", "1")
	if f.Engine != OpenCV || f.Threads != 1 {
		t.Errorf("flags = %+v", f)
	}
}

func TestEmotionConfig(t *testing.T) {
	f := parse(t, "-model", "m.onnx", "-backend", "cuda", "-no-fallback")
	cfg, err := f.EmotionConfig(nil)
	if err != nil {
		t.Fatalf("EmotionConfig: %v", err)
	}
	if cfg.ModelPath != "m.onnx" || cfg.Backend != emotion.BackendGPU || cfg.FallbackToCPU {
		t.Errorf("cfg = %+v", cfg)
	}

	f = parse(t, "-backend", "tpu9000")
	if _, err := f.EmotionConfig(nil); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestOpener(t *testing.T) {
	tests := []struct {
		args    []string
		wantErr bool
	}{
		{args: nil},
		{args: []string{"-engine", "onnx"}},
		{args: []string{"-engine", "tflite"}, wantErr: true},
		{args: []string{"-channels", "2"}, wantErr: true},
	}
	for _, tt := range tests {
		open, err := parse(t, tt.args...).Opener()
		if (err != nil) != tt.wantErr {
			t.Errorf("Opener(%v) error = %v, wantErr %v", tt.args, err, tt.wantErr)
		}
		if err == nil && open == nil {
			t.Errorf("Opener(%v) returned nil", tt.args)
		}
	}
}

func TestDetector_MissingModel(t *testing.T) {
	f := parse(t, "-detector", "/nonexistent/yunet.onnx")
	if _, err := f.Detector(nil); err == nil {
		t.Error("expected error for missing detector model")
	}
}

func TestLoader_MissingModel(t *testing.T) {
	load, err := parse(t, "-model", "/nonexistent/fer.onnx").Loader(nil)
	if err != nil {
		t.Fatalf("Loader: %v", err)
	}
	if _, err := load(); !errors.Is(err, emotion.ErrLoad) {
		t.Errorf("load error = %v, want ErrLoad", err)
	}
}
