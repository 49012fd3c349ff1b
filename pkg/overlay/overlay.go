// Package overlay draws classification results onto frames.
package overlay

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/teslashibe/go-fer/pkg/pipeline"
	"gocv.io/x/gocv"
)

// Style controls how boxes and labels are drawn.
type Style struct {
	Color     color.RGBA
	Thickness int
	FontScale float64
	Quality   int // JPEG quality 1-100
}

// DefaultStyle draws 3px green boxes with the label at the top-left corner.
func DefaultStyle() Style {
	return Style{
		Color:     color.RGBA{R: 0, G: 255, B: 0, A: 255},
		Thickness: 3,
		FontScale: 0.6,
		Quality:   85,
	}
}

// Draw renders overlays onto a copy of img. The caller must Close the returned Mat.
func Draw(img image.Image, overlays []pipeline.Overlay, style Style) (gocv.Mat, error) {
	if img == nil || img.Bounds().Empty() {
		return gocv.NewMat(), errors.New("overlay: empty frame")
	}

	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("overlay: convert frame: %w", err)
	}

	// Mat coordinates start at the origin regardless of img.Bounds().Min.
	origin := img.Bounds().Min
	for _, o := range overlays {
		r := o.Box.Rect().Sub(origin)
		gocv.Rectangle(&mat, r, style.Color, style.Thickness)

		pt := image.Pt(r.Min.X, r.Min.Y-style.Thickness-2)
		if pt.Y < 12 {
			pt.Y = r.Min.Y + 14
		}
		gocv.PutText(&mat, o.Label, pt, gocv.FontHersheySimplex, style.FontScale, style.Color, 2)
	}
	return mat, nil
}

// JPEG renders overlays onto img and encodes the result.
func JPEG(img image.Image, overlays []pipeline.Overlay, style Style) ([]byte, error) {
	mat, err := Draw(img, overlays, style)
	defer mat.Close()
	if err != nil {
		return nil, err
	}

	quality := style.Quality
	if quality < 1 || quality > 100 {
		quality = DefaultStyle().Quality
	}
	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, mat, []int{gocv.IMWriteJpegQuality, quality})
	if err != nil {
		return nil, fmt.Errorf("overlay: encode: %w", err)
	}
	defer buf.Close()

	return append([]byte(nil), buf.GetBytes()...), nil
}

// Result renders a pipeline result onto its frame.
func Result(r pipeline.Result, style Style) ([]byte, error) {
	return JPEG(r.Frame, r.Overlays, style)
}
