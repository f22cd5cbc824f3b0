// Package align computes and applies per-segment offsets that bring a
// capture sequence into a common coordinate frame before compositing.
package align

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"

	"github.com/MeKo-Tech/leafstitch/internal/midrib"
	"github.com/MeKo-Tech/leafstitch/internal/raster"
)

// PreviewScale is the default downscale factor for the interactive preview
// path.
const PreviewScale = 0.25

// Plan holds one vertical pixel offset per segment plus the detections that
// produced it. Offsets follow one convention throughout the module:
// offset[i] = referenceY - midribY[i], and a positive offset draws segment i
// lower on the expanded canvas, which raises its midrib to the reference row
// in the shared frame.
type Plan struct {
	Offsets    []int              `json:"offsets"`
	ReferenceY int                `json:"reference_y"`
	Detections []midrib.Detection `json:"detections,omitempty"`
}

// PlanOffsets detects the midrib in every segment and derives offsets
// relative to referenceY. Pass referenceY < 0 to use the first segment's
// detected midrib row as the reference.
func PlanOffsets(images raster.Sequence, tolerance float64, referenceY int) (*Plan, error) {
	if err := images.Validate(); err != nil {
		return nil, err
	}

	detections := midrib.DetectAll(images, tolerance)
	if referenceY < 0 {
		referenceY = detections[0].Y
	}

	offsets := make([]int, len(images))
	for i, d := range detections {
		offsets[i] = referenceY - d.Y
	}
	return &Plan{Offsets: offsets, ReferenceY: referenceY, Detections: detections}, nil
}

// ManualPlan wraps operator-supplied offsets so they flow through the same
// canvas-expansion path as detected ones.
func ManualPlan(offsets []int) *Plan {
	out := make([]int, len(offsets))
	copy(out, offsets)
	return &Plan{Offsets: out, ReferenceY: -1}
}

// ApplyOffsets shifts every segment vertically by its offset onto an expanded
// canvas tall enough that no segment is clipped. Unoccupied canvas area is
// filled with fill (white for a transmittance light table; downstream JPEG
// encoding has no alpha channel).
//
// This is the single expansion routine for both detection-driven and manual
// plans; it only looks at the offset array, not its origin.
func ApplyOffsets(images raster.Sequence, offsets []int, fill color.Color) (raster.Sequence, error) {
	if err := images.Validate(); err != nil {
		return nil, err
	}
	if len(offsets) != len(images) {
		return nil, &raster.ProcessingError{
			Operation: "apply_offsets",
			Err:       fmt.Errorf("offset count %d does not match segment count %d", len(offsets), len(images)),
		}
	}

	minOff, maxOff := 0, 0
	for _, off := range offsets {
		if off < minOff {
			minOff = off
		}
		if off > maxOff {
			maxOff = off
		}
	}

	// Shifting everything by -minOff keeps canvas coordinates non-negative.
	adjustment := -minOff
	canvasH := images.MaxHeight() + adjustment + maxOff
	if canvasH < 1 {
		return nil, &raster.ProcessingError{Operation: "apply_offsets", Err: errors.New("degenerate canvas height")}
	}

	shifted := make(raster.Sequence, len(images))
	for i, img := range images {
		canvas := imaging.New(img.Width(), canvasH, fill)
		canvas = imaging.Paste(canvas, img.NRGBA(), image.Pt(0, offsets[i]+adjustment))
		out, err := raster.FromImage(canvas)
		if err != nil {
			return nil, err
		}
		shifted[i] = out
	}
	return shifted, nil
}

// ApplyOffsetsPreview is the cheap variant for interactive offset review: it
// applies a scaled copy of the offsets to downscaled copies of the segments.
// The full-resolution ApplyOffsets is only run once, on confirmation.
func ApplyOffsetsPreview(images raster.Sequence, offsets []int, fill color.Color, scale float64) (raster.Sequence, error) {
	if scale <= 0 || scale > 1 {
		scale = PreviewScale
	}
	if err := images.Validate(); err != nil {
		return nil, err
	}
	if len(offsets) != len(images) {
		return nil, &raster.ProcessingError{
			Operation: "apply_offsets_preview",
			Err:       fmt.Errorf("offset count %d does not match segment count %d", len(offsets), len(images)),
		}
	}

	small := make(raster.Sequence, len(images))
	scaledOffsets := make([]int, len(offsets))
	for i, img := range images {
		small[i] = img.Scale(scale)
		scaledOffsets[i] = int(math.Round(float64(offsets[i]) * scale))
	}
	return ApplyOffsets(small, scaledOffsets, fill)
}
