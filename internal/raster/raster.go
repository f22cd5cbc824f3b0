package raster

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// ProcessingError represents errors that occur while manipulating rasters.
type ProcessingError struct {
	Operation string
	Err       error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("raster error in %s: %v", e.Operation, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

// Image is a width x height grid of 8-bit RGBA samples.
//
// Images are immutable by convention: every transform (Crop, Scale, strip
// extraction) allocates and returns a new Image and never touches its
// receiver. The stage that produced an Image owns it until the next stage
// consumes it; callers holding many full-resolution segments should drop
// references as soon as a consumer is done with them.
type Image struct {
	pix *image.NRGBA
}

// New creates an Image of the given dimensions filled with the given color.
// Dimensions are clamped to a minimum of 1x1.
func New(width, height int, fill color.Color) *Image {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	return &Image{pix: imaging.New(width, height, fill)}
}

// FromImage copies an arbitrary image.Image into a new Image.
func FromImage(img image.Image) (*Image, error) {
	if img == nil {
		return nil, &ProcessingError{Operation: "from_image", Err: errors.New("input image is nil")}
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, &ProcessingError{Operation: "from_image", Err: fmt.Errorf("invalid dimensions %dx%d", b.Dx(), b.Dy())}
	}
	return &Image{pix: imaging.Clone(img)}, nil
}

// Width returns the image width in pixels.
func (m *Image) Width() int { return m.pix.Rect.Dx() }

// Height returns the image height in pixels.
func (m *Image) Height() int { return m.pix.Rect.Dy() }

// NRGBA exposes the underlying pixel buffer for read access and encoding.
// Callers must not mutate it.
func (m *Image) NRGBA() *image.NRGBA { return m.pix }

// Clone returns a deep copy.
func (m *Image) Clone() *Image {
	return &Image{pix: imaging.Clone(m.pix)}
}

// RGBAAt returns the four channel values at (x, y). Coordinates outside the
// image return zeros.
func (m *Image) RGBAAt(x, y int) (r, g, b, a uint8) {
	if x < 0 || y < 0 || x >= m.Width() || y >= m.Height() {
		return 0, 0, 0, 0
	}
	i := m.pix.PixOffset(m.pix.Rect.Min.X+x, m.pix.Rect.Min.Y+y)
	s := m.pix.Pix[i : i+4 : i+4]
	return s[0], s[1], s[2], s[3]
}

// Gray returns the grayscale value at (x, y) as the mean of the three color
// channels.
func (m *Image) Gray(x, y int) float64 {
	r, g, b, _ := m.RGBAAt(x, y)
	return (float64(r) + float64(g) + float64(b)) / 3.0
}

// Crop extracts the given sub-rectangle as a new Image. The rectangle is
// clamped to the image bounds; an empty intersection yields a 1x1 image.
func (m *Image) Crop(rect image.Rectangle) *Image {
	rect = rect.Intersect(image.Rect(0, 0, m.Width(), m.Height()))
	if rect.Empty() {
		return New(1, 1, color.Transparent)
	}
	return &Image{pix: imaging.Crop(m.pix, rect)}
}

// Scale resamples the image by the given factor using linear filtering.
// Resulting dimensions are clamped to a minimum of 1px.
func (m *Image) Scale(factor float64) *Image {
	if factor <= 0 || factor == 1.0 {
		return m.Clone()
	}
	w := int(float64(m.Width())*factor + 0.5)
	h := int(float64(m.Height())*factor + 0.5)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return &Image{pix: imaging.Resize(m.pix, w, h, imaging.Linear)}
}

// Fit downscales the image to fit within maxWidth x maxHeight, preserving
// aspect ratio. Images already within bounds are copied unchanged.
func (m *Image) Fit(maxWidth, maxHeight int) *Image {
	if m.Width() <= maxWidth && m.Height() <= maxHeight {
		return m.Clone()
	}
	return &Image{pix: imaging.Fit(m.pix, maxWidth, maxHeight, imaging.Linear)}
}

// LeftStrip returns the leading (leftmost) columns of the image.
func (m *Image) LeftStrip(width int) *Image {
	width = clamp(width, 1, m.Width())
	return m.Crop(image.Rect(0, 0, width, m.Height()))
}

// RightStrip returns the trailing (rightmost) columns of the image.
func (m *Image) RightStrip(width int) *Image {
	width = clamp(width, 1, m.Width())
	return m.Crop(image.Rect(m.Width()-width, 0, m.Width(), m.Height()))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
