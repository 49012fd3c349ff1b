// Package preprocess converts face crops into the normalized grayscale input
// expected by the emotion network.
package preprocess

import (
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/teslashibe/go-fer/pkg/tensor"
)

// Perceptual luminance weights.
const (
	weightR = 0.2989
	weightG = 0.5870
	weightB = 0.1140
)

var (
	// ErrInvalidSize is returned for a non-positive target size.
	ErrInvalidSize = errors.New("preprocess: target size must be positive")

	// ErrEmptyImage is returned when the source image has no pixels.
	ErrEmptyImage = errors.New("preprocess: empty image")
)

// Layout is the memory order of a multi-channel input tensor.
type Layout int

const (
	// NHWC stores channels innermost (TFLite).
	NHWC Layout = iota
	// NCHW stores each channel as a separate plane (ONNX, OpenCV).
	NCHW
)

// String returns the layout name.
func (l Layout) String() string {
	if l == NCHW {
		return "NCHW"
	}
	return "NHWC"
}

// Preprocess resamples img to width x height and returns the inverted,
// normalized luminance of every pixel in row-major order.
func Preprocess(img image.Image, width, height int) ([]float32, error) {
	if width <= 0 || height <= 0 {
		return nil, ErrInvalidSize
	}
	dst := make([]float32, width*height)
	if err := PreprocessInto(dst, img, width, height); err != nil {
		return nil, err
	}
	return dst, nil
}

// PreprocessInto is Preprocess writing into a caller-owned slice of length width*height.
// Every position of dst is overwritten.
func PreprocessInto(dst []float32, img image.Image, width, height int) error {
	if width <= 0 || height <= 0 {
		return ErrInvalidSize
	}
	if img == nil || img.Bounds().Empty() {
		return ErrEmptyImage
	}
	if len(dst) != width*height {
		return &tensor.ShapeError{Shape: []int{height, width}, Want: width * height, Got: len(dst)}
	}

	// Linear is a smoothing filter; nearest-neighbour would alias on small crops.
	scaled := imaging.Resize(img, width, height, imaging.Linear)

	i := 0
	for y := 0; y < height; y++ {
		row := scaled.Pix[y*scaled.Stride : y*scaled.Stride+width*4]
		for x := 0; x < width*4; x += 4 {
			dst[i] = Invert(Luminance(row[x], row[x+1], row[x+2]))
			i++
		}
	}
	return nil
}

// Luminance returns the perceptual luminance of an 8-bit RGB pixel.
func Luminance(r, g, b uint8) float32 {
	return weightR*float32(r) + weightG*float32(g) + weightB*float32(b)
}

// Invert maps a luminance in [0,255] to (255-l)/255, so dark pixels become large values.
func Invert(l float32) float32 {
	return (255 - l) / 255
}

// Expand replicates a single-channel plane into channels copies using layout.
// dst must hold width*height*channels values.
func Expand(dst, gray []float32, width, height, channels int, layout Layout) error {
	plane := width * height
	if len(gray) != plane {
		return &tensor.ShapeError{Shape: []int{height, width}, Want: plane, Got: len(gray)}
	}
	if channels <= 0 {
		return fmt.Errorf("preprocess: channels must be positive, got %d", channels)
	}
	if len(dst) != plane*channels {
		return &tensor.ShapeError{Shape: []int{height, width, channels}, Want: plane * channels, Got: len(dst)}
	}

	if layout == NCHW {
		for c := 0; c < channels; c++ {
			copy(dst[c*plane:(c+1)*plane], gray)
		}
		return nil
	}

	for i, v := range gray {
		for c := 0; c < channels; c++ {
			dst[i*channels+c] = v
		}
	}
	return nil
}
