// Package stitch composites an ordered left-to-right sequence of leaf
// segment images into a single panorama, blending each overlap region with a
// linear gradient.
package stitch

import (
	"context"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"

	"github.com/MeKo-Tech/leafstitch/internal/raster"
)

// Options controls a single composition pass.
type Options struct {
	// OverlapFraction is the fraction of each segment's width expected to
	// overlap its neighbor, in (0,1).
	OverlapFraction float64
	// FillColor pre-fills the canvas so gaps from height mismatches render
	// as light-table background rather than black. Nil means white.
	FillColor color.Color
}

// DefaultOverlapFraction matches the capture guide used in the field.
const DefaultOverlapFraction = 0.10

// Stitch concatenates the sequence into one canvas. It always returns a
// terminal outcome: an error outcome for empty input or mid-composition
// failures (never a panic across the package boundary), a success outcome
// wrapping an unmodified copy for a single image, and the composite
// otherwise. cb may be nil.
//
// Cancellation is cooperative at seam granularity: ctx is checked between
// segments, not inside pixel loops.
func Stitch(ctx context.Context, images raster.Sequence, opts Options, cb ProgressCallback) (out Outcome) {
	if cb == nil {
		cb = NoOpProgressCallback{}
	}
	defer func() {
		if r := recover(); r != nil {
			out = Errorf("composition failed: %v", r)
		}
	}()

	if len(images) == 0 {
		return Errorf("no images to stitch")
	}
	if err := images.Validate(); err != nil {
		return Errorf("%v", err)
	}
	if len(images) == 1 {
		return Success(images[0].Clone())
	}

	fill := opts.FillColor
	if fill == nil {
		fill = color.White
	}

	positions, overlaps, totalW := layout(images, opts.OverlapFraction)
	canvasH := images.MaxHeight()
	canvas := imaging.New(totalW, canvasH, fill)

	// First segment is drawn unmodified at x=0.
	canvas = imaging.Paste(canvas, images[0].NRGBA(), image.Pt(0, 0))

	seams := len(images) - 1
	cb.OnStart(seams)
	for i := 1; i < len(images); i++ {
		if err := ctx.Err(); err != nil {
			cb.OnError(i, err)
			return Errorf("composition canceled: %v", err)
		}

		ov := overlaps[i]
		x := positions[i]
		if ov == 0 {
			canvas = imaging.Paste(canvas, images[i].NRGBA(), image.Pt(x, 0))
		} else {
			blendSeam(canvas, images[i-1], images[i], x, ov)
			rest := images[i].Crop(image.Rect(ov, 0, images[i].Width(), images[i].Height()))
			canvas = imaging.Paste(canvas, rest.NRGBA(), image.Pt(x+ov, 0))
		}
		cb.OnProgress(i, seams)
	}
	cb.OnComplete()

	composite, err := raster.FromImage(canvas)
	if err != nil {
		cb.OnError(seams, err)
		return Errorf("composition failed: %v", err)
	}
	return Success(composite)
}

// layout computes each segment's canvas x position, its per-seam overlap
// width, and the total canvas width. The configured overlap width is derived
// from the first segment's width and clamped per seam to both neighbors.
func layout(images raster.Sequence, overlapFraction float64) (positions, overlaps []int, totalW int) {
	configured := 0
	if overlapFraction > 0 && overlapFraction < 1 {
		configured = int(math.Round(float64(images[0].Width()) * overlapFraction))
	}

	positions = make([]int, len(images))
	overlaps = make([]int, len(images))
	for i := 1; i < len(images); i++ {
		ov := min(configured, images[i].Width(), images[i-1].Width())
		if ov < 0 {
			ov = 0
		}
		overlaps[i] = ov
		positions[i] = positions[i-1] + images[i-1].Width() - ov
	}
	last := len(images) - 1
	return positions, overlaps, positions[last] + images[last].Width()
}

// blendSeam writes the gradient strip for one seam directly into the canvas.
// For each strip column x, blend factor x/ov runs from 0 (previous segment
// only) toward 1 (current segment only); rows covered by a single segment
// take that segment's pixel, rows covered by neither keep the background
// fill. Interpolation is plain per-channel linear with rounding, not
// gamma-corrected.
func blendSeam(canvas *image.NRGBA, prev, cur *raster.Image, xStart, ov int) {
	prevEdgeX := prev.Width() - ov
	h := canvas.Rect.Dy()

	for x := range ov {
		factor := float64(x) / float64(ov)
		for y := range h {
			prevIn := y < prev.Height()
			curIn := y < cur.Height()
			var c color.NRGBA
			switch {
			case prevIn && curIn:
				pr, pg, pb, pa := prev.RGBAAt(prevEdgeX+x, y)
				cr, cg, cb2, ca := cur.RGBAAt(x, y)
				c = color.NRGBA{
					R: lerp(pr, cr, factor),
					G: lerp(pg, cg, factor),
					B: lerp(pb, cb2, factor),
					A: lerp(pa, ca, factor),
				}
			case prevIn:
				pr, pg, pb, pa := prev.RGBAAt(prevEdgeX+x, y)
				c = color.NRGBA{R: pr, G: pg, B: pb, A: pa}
			case curIn:
				cr, cg, cb2, ca := cur.RGBAAt(x, y)
				c = color.NRGBA{R: cr, G: cg, B: cb2, A: ca}
			default:
				continue
			}
			canvas.SetNRGBA(xStart+x, y, c)
		}
	}
}

func lerp(a, b uint8, f float64) uint8 {
	return uint8(math.Round(float64(a)*(1-f) + float64(b)*f))
}
