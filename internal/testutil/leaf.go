// Package testutil generates synthetic leaf segment images for tests:
// solid-color segments for compositor geometry checks and segments with an
// embedded green band standing in for the midrib under transmittance light.
package testutil

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/MeKo-Tech/leafstitch/internal/raster"
)

// Common fixture colors. LeafTissue is a washed-out green, Midrib a saturated
// bright green, mimicking the relative channel balance of a backlit leaf.
var (
	LeafTissue = color.NRGBA{R: 150, G: 180, B: 120, A: 255}
	Midrib     = color.NRGBA{R: 40, G: 255, B: 40, A: 255}
	LightTable = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
)

// SolidSegment creates a segment of a single color.
func SolidSegment(width, height int, c color.Color) *raster.Image {
	return raster.New(width, height, c)
}

// MidribSegment creates a leaf-tissue segment with a horizontal band of
// midrib green centered on row centerY with the given band height.
func MidribSegment(width, height, centerY, bandHeight int) *raster.Image {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{LeafTissue}, image.Point{}, draw.Src)

	y0 := centerY - bandHeight/2
	y1 := y0 + bandHeight
	if y0 < 0 {
		y0 = 0
	}
	if y1 > height {
		y1 = height
	}
	draw.Draw(img, image.Rect(0, y0, width, y1), &image.Uniform{Midrib}, image.Point{}, draw.Src)

	out, err := raster.FromImage(img)
	if err != nil {
		panic(err)
	}
	return out
}

// GradientSegment creates a segment whose gray value ramps left to right,
// giving the correlation scorer structure to lock onto.
func GradientSegment(width, height int) *raster.Image {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := range height {
		for x := range width {
			v := uint8(x * 255 / max(width-1, 1))
			img.SetNRGBA(x, y, color.NRGBA{R: v, G: v, B: v, A: 255})
		}
	}
	out, err := raster.FromImage(img)
	if err != nil {
		panic(err)
	}
	return out
}

// InvertedCopy returns a copy with all color channels inverted, the maximum
// grayscale difference partner for its input.
func InvertedCopy(src *raster.Image) *raster.Image {
	w, h := src.Width(), src.Height()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			r, g, b, a := src.RGBAAt(x, y)
			img.SetNRGBA(x, y, color.NRGBA{R: 255 - r, G: 255 - g, B: 255 - b, A: a})
		}
	}
	out, err := raster.FromImage(img)
	if err != nil {
		panic(err)
	}
	return out
}
