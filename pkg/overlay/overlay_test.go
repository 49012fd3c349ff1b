package overlay

import (
	"bytes"
	"image"
	"image/jpeg"
	"testing"

	"github.com/teslashibe/go-fer/pkg/pipeline"
	"github.com/teslashibe/go-fer/pkg/region"
)

func TestJPEG_DrawsBox(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 120, 100))
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 255
	}
	overlays := []pipeline.Overlay{{
		Box:   region.Box{Left: 20, Top: 30, Right: 80, Bottom: 90},
		Label: "happy",
	}}

	data, err := JPEG(img, overlays, DefaultStyle())
	if err != nil {
		t.Fatalf("JPEG failed: %v", err)
	}

	out, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Bounds().Dx() != 120 || out.Bounds().Dy() != 100 {
		t.Fatalf("output size = %v, want 120x100", out.Bounds())
	}

	// Left edge of the box, well below the label.
	r, g, b, _ := out.At(20, 70).RGBA()
	if g>>8 < 180 || r>>8 > 80 || b>>8 > 80 {
		t.Errorf("box edge color = (%d,%d,%d), want green", r>>8, g>>8, b>>8)
	}
	// Interior stays black.
	r, g, b, _ = out.At(50, 75).RGBA()
	if r>>8 > 40 || g>>8 > 40 || b>>8 > 40 {
		t.Errorf("interior color = (%d,%d,%d), want black", r>>8, g>>8, b>>8)
	}
}

func TestJPEG_EmptyFrame(t *testing.T) {
	if _, err := JPEG(nil, nil, DefaultStyle()); err == nil {
		t.Error("expected error for nil frame")
	}
	if _, err := JPEG(image.NewRGBA(image.Rectangle{}), nil, DefaultStyle()); err == nil {
		t.Error("expected error for empty frame")
	}
}

func TestResult_NoOverlays(t *testing.T) {
	res := pipeline.Result{Frame: image.NewGray(image.Rect(0, 0, 16, 16))}
	data, err := Result(res, DefaultStyle())
	if err != nil {
		t.Fatalf("Result failed: %v", err)
	}
	if _, err := jpeg.Decode(bytes.NewReader(data)); err != nil {
		t.Errorf("output is not a JPEG: %v", err)
	}
}
