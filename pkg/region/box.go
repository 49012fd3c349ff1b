// Package region clips face bounding boxes to image bounds and extracts the
// corresponding sub-images.
package region

import (
	"fmt"
	"image"
)

// Box is an axis-aligned face rectangle in image pixel coordinates.
// Right and Bottom are exclusive. A Box reported by a detector may extend past
// the image; call Clamp before using it.
type Box struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
}

// FromRect converts an image.Rectangle.
func FromRect(r image.Rectangle) Box {
	return Box{Left: r.Min.X, Top: r.Min.Y, Right: r.Max.X, Bottom: r.Max.Y}
}

// Rect converts to an image.Rectangle without canonicalizing.
func (b Box) Rect() image.Rectangle {
	return image.Rectangle{Min: image.Pt(b.Left, b.Top), Max: image.Pt(b.Right, b.Bottom)}
}

// Width returns Right-Left, which may be negative.
func (b Box) Width() int { return b.Right - b.Left }

// Height returns Bottom-Top, which may be negative.
func (b Box) Height() int { return b.Bottom - b.Top }

// Empty reports whether the box has non-positive area.
func (b Box) Empty() bool {
	return b.Width() <= 0 || b.Height() <= 0
}

// Clamp clips the box to bounds. The second result is false when the clipped
// region has non-positive width or height.
func (b Box) Clamp(bounds image.Rectangle) (Box, bool) {
	x := max(b.Left, bounds.Min.X)
	y := max(b.Top, bounds.Min.Y)
	w := min(b.Right, bounds.Max.X) - x
	h := min(b.Bottom, bounds.Max.Y) - y

	if w <= 0 || h <= 0 {
		return Box{}, false
	}
	return Box{Left: x, Top: y, Right: x + w, Bottom: y + h}, true
}

// Scale multiplies all coordinates by sx, sy, rounding outward so the scaled
// box still covers the original face.
func (b Box) Scale(sx, sy float64) Box {
	return Box{
		Left:   floor(float64(b.Left) * sx),
		Top:    floor(float64(b.Top) * sy),
		Right:  ceil(float64(b.Right) * sx),
		Bottom: ceil(float64(b.Bottom) * sy),
	}
}

// String formats the box as (left,top,right,bottom).
func (b Box) String() string {
	return fmt.Sprintf("(%d,%d,%d,%d)", b.Left, b.Top, b.Right, b.Bottom)
}

func floor(v float64) int {
	i := int(v)
	if float64(i) > v {
		i--
	}
	return i
}

func ceil(v float64) int {
	i := int(v)
	if float64(i) < v {
		i++
	}
	return i
}
