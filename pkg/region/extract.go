package region

import (
	"errors"
	"image"

	"github.com/disintegration/imaging"
)

// ErrDegenerateRegion is returned when a clamped box has non-positive area.
// Callers skip such faces without reporting them.
var ErrDegenerateRegion = errors.New("region: degenerate face region")

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// Extract clamps box to the bounds of img and returns the covered sub-image
// together with the clamped box.
//
// The sub-image shares pixels with img when the concrete type supports
// SubImage (all stdlib image types do); otherwise the region is copied.
func Extract(img image.Image, box Box) (image.Image, Box, error) {
	clamped, ok := box.Clamp(img.Bounds())
	if !ok {
		return nil, Box{}, ErrDegenerateRegion
	}

	r := clamped.Rect()
	if s, ok := img.(subImager); ok {
		return s.SubImage(r), clamped, nil
	}
	return imaging.Crop(img, r), clamped, nil
}
