// Package detection locates faces in captured frames.
package detection

import (
	"context"
	"image"
	"sort"

	"github.com/teslashibe/go-fer/pkg/region"
)

// Detection represents a detected face
type Detection struct {
	Box        region.Box `json:"box"`        // Pixel box in frame coordinates, may extend past the frame
	Confidence float64    `json:"confidence"` // Detection confidence (0-1)
}

// Center returns the center point of the detection
func (d Detection) Center() (x, y float64) {
	return float64(d.Box.Left+d.Box.Right) / 2, float64(d.Box.Top+d.Box.Bottom) / 2
}

// Area returns the area of the bounding box in pixels
func (d Detection) Area() int {
	if d.Box.Empty() {
		return 0
	}
	return d.Box.Width() * d.Box.Height()
}

// Detector is the interface for face detection backends
type Detector interface {
	// Detect finds faces in the image and returns their boxes
	Detect(ctx context.Context, img image.Image) ([]Detection, error)

	// Close releases resources
	Close() error
}

// Config holds detector configuration
type Config struct {
	ModelPath        string  // Path to ONNX model
	ConfidenceThresh float64 // Minimum confidence (default 0.5)
	NMSThresh        float64 // Non-maximum suppression threshold (default 0.3)
	TopK             int     // Candidates kept before NMS (default 5000)
	InputWidth       int     // Initial model input width
	InputHeight      int     // Initial model input height
}

// DefaultConfig returns production defaults for YuNet
func DefaultConfig() Config {
	return Config{
		ModelPath:        "models/face_detection_yunet.onnx",
		ConfidenceThresh: 0.5,
		NMSThresh:        0.3,
		TopK:             5000,
		InputWidth:       320,
		InputHeight:      320,
	}
}

// SortByConfidence orders detections by descending confidence.
// Equal confidences keep their original order.
func SortByConfidence(dets []Detection) {
	sort.SliceStable(dets, func(i, j int) bool {
		return dets[i].Confidence > dets[j].Confidence
	})
}
