package detection

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func testYuNetConfig(modelPath string) Config {
	cfg := DefaultConfig()
	cfg.ModelPath = modelPath
	return cfg
}

// TestYuNetNew tests detector initialization
func TestYuNetNew(t *testing.T) {
	modelPath := findModelPath()
	if modelPath == "" {
		t.Skip("YuNet model not found, skipping test")
	}

	detector, err := NewYuNet(testYuNetConfig(modelPath), nil)
	if err != nil {
		t.Fatalf("NewYuNet failed: %v", err)
	}
	defer detector.Close()
}

// TestYuNetNewInvalidPath tests error handling for missing model
func TestYuNetNewInvalidPath(t *testing.T) {
	_, err := NewYuNet(testYuNetConfig("/nonexistent/path/model.onnx"), nil)
	if err == nil {
		t.Error("Expected error for invalid model path")
	}
}

// TestYuNetDetect_EmptyImage tests detection on an image without pixels
func TestYuNetDetect_EmptyImage(t *testing.T) {
	modelPath := findModelPath()
	if modelPath == "" {
		t.Skip("YuNet model not found, skipping test")
	}

	detector, err := NewYuNet(testYuNetConfig(modelPath), nil)
	if err != nil {
		t.Fatalf("NewYuNet failed: %v", err)
	}
	defer detector.Close()

	if _, err := detector.Detect(context.Background(), image.NewRGBA(image.Rectangle{})); err == nil {
		t.Error("Expected error for empty image")
	}
	if _, err := detector.Detect(context.Background(), nil); err == nil {
		t.Error("Expected error for nil image")
	}
}

// TestYuNetDetect_SolidImage tests detection on solid color image (no faces)
func TestYuNetDetect_SolidImage(t *testing.T) {
	modelPath := findModelPath()
	if modelPath == "" {
		t.Skip("YuNet model not found, skipping test")
	}

	detector, err := NewYuNet(testYuNetConfig(modelPath), nil)
	if err != nil {
		t.Fatalf("NewYuNet failed: %v", err)
	}
	defer detector.Close()

	img := createSolidImage(320, 240, color.RGBA{0, 0, 255, 255})

	detections, err := detector.Detect(context.Background(), img)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(detections) > 0 {
		t.Errorf("Expected no detections in solid color image, got %d", len(detections))
	}
}

func TestYuNetDetect_CanceledContext(t *testing.T) {
	modelPath := findModelPath()
	if modelPath == "" {
		t.Skip("YuNet model not found, skipping test")
	}

	detector, err := NewYuNet(testYuNetConfig(modelPath), nil)
	if err != nil {
		t.Fatalf("NewYuNet failed: %v", err)
	}
	defer detector.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := detector.Detect(ctx, createSolidImage(64, 64, color.White)); err == nil {
		t.Error("Expected error for canceled context")
	}
}

// TestYuNetClose tests proper resource cleanup
func TestYuNetClose(t *testing.T) {
	modelPath := findModelPath()
	if modelPath == "" {
		t.Skip("YuNet model not found, skipping test")
	}

	detector, err := NewYuNet(testYuNetConfig(modelPath), nil)
	if err != nil {
		t.Fatalf("NewYuNet failed: %v", err)
	}

	if err := detector.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if err := detector.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
	if _, err := detector.Detect(context.Background(), createSolidImage(32, 32, color.White)); err == nil {
		t.Error("Expected error after Close")
	}
}

// TestYuNetConcurrency tests thread safety
func TestYuNetConcurrency(t *testing.T) {
	modelPath := findModelPath()
	if modelPath == "" {
		t.Skip("YuNet model not found, skipping test")
	}

	detector, err := NewYuNet(testYuNetConfig(modelPath), nil)
	if err != nil {
		t.Fatalf("NewYuNet failed: %v", err)
	}
	defer detector.Close()

	img := createSolidImage(320, 240, color.RGBA{100, 100, 100, 255})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := detector.Detect(context.Background(), img); err != nil {
				t.Errorf("Concurrent detection failed: %v", err)
			}
		}()
	}
	wg.Wait()
}

// Helper functions

func findModelPath() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	for dir := cwd; dir != "/"; dir = filepath.Dir(dir) {
		modelPath := filepath.Join(dir, "models", "face_detection_yunet.onnx")
		if _, err := os.Stat(modelPath); err == nil {
			return modelPath
		}
	}
	return ""
}

func createSolidImage(width, height int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}
