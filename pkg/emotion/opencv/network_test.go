package opencv

import (
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/teslashibe/go-fer/pkg/emotion"
	"gocv.io/x/gocv"
)

func TestPreferable(t *testing.T) {
	tests := []struct {
		backend    emotion.Backend
		wantBack   gocv.NetBackendType
		wantTarget gocv.NetTargetType
	}{
		{emotion.BackendCPU, gocv.NetBackendDefault, gocv.NetTargetCPU},
		{emotion.BackendGPU, gocv.NetBackendCUDA, gocv.NetTargetCUDA},
		{emotion.BackendAccelerator, gocv.NetBackendOpenVINO, gocv.NetTargetVPU},
	}

	for _, tc := range tests {
		b, target := preferable(tc.backend)
		if b != tc.wantBack || target != tc.wantTarget {
			t.Errorf("preferable(%v) = %v/%v, want %v/%v", tc.backend, b, target, tc.wantBack, tc.wantTarget)
		}
	}
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
	bad := []Config{
		{InputWidth: 0, InputHeight: 48, Channels: 1},
		{InputWidth: 48, InputHeight: -1, Channels: 1},
		{InputWidth: 48, InputHeight: 48, Channels: 2},
	}
	for _, c := range bad {
		if err := c.Validate(); err == nil {
			t.Errorf("Validate(%+v) returned nil", c)
		}
	}
}

func TestOpen_MissingModel(t *testing.T) {
	_, err := Open("/nonexistent/fer2013.onnx", emotion.NetworkOptions{}, DefaultConfig())
	if !errors.Is(err, emotion.ErrLoad) {
		t.Errorf("Open error = %v, want ErrLoad", err)
	}
}

func TestModel_Infer(t *testing.T) {
	modelPath := findModelPath()
	if modelPath == "" {
		t.Skip("emotion model not found, skipping test")
	}

	cfg := emotion.DefaultConfig().WithModelPath(modelPath)
	m, err := emotion.New(cfg, Opener(DefaultConfig()))
	if err != nil {
		t.Fatalf("emotion.New failed: %v", err)
	}
	defer m.Close()

	img := image.NewRGBA(image.Rect(0, 0, 96, 96))
	for i := range img.Pix {
		img.Pix[i] = 128
	}
	img.Set(10, 10, color.Black)

	first, err := m.Infer(img)
	if err != nil {
		t.Fatalf("Infer failed: %v", err)
	}
	if len(first) != len(m.Labels()) {
		t.Fatalf("got %d scores, want %d", len(first), len(m.Labels()))
	}

	second, err := m.Infer(img)
	if err != nil {
		t.Fatalf("second Infer failed: %v", err)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("score %d differs between identical calls: %v vs %v", i, first[i], second[i])
		}
	}
}

// Helper functions

func findModelPath() string {
	if p := os.Getenv("FER_MODEL"); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	for dir := cwd; dir != "/"; dir = filepath.Dir(dir) {
		modelPath := filepath.Join(dir, "models", "fer2013.onnx")
		if _, err := os.Stat(modelPath); err == nil {
			return modelPath
		}
	}
	return ""
}
