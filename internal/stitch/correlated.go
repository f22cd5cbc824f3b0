package stitch

import (
	"context"
	"errors"
	"image/color"
	"log/slog"
	"math"

	"github.com/MeKo-Tech/leafstitch/internal/align"
	"github.com/MeKo-Tech/leafstitch/internal/raster"
)

// StitchCorrelated is the alternate whole-image path for captures without
// per-segment crop or midrib pre-processing: each neighboring pair's vertical
// drift is estimated by correlation over the overlap edge strips before the
// usual gradient composition. Pairs whose correlation falls below the
// configured floor contribute no shift, degrading to pure concatenation.
func StitchCorrelated(ctx context.Context, images raster.Sequence, opts Options, corr align.CorrelatorConfig, cb ProgressCallback) Outcome {
	if len(images) == 0 {
		return Errorf("no images to stitch")
	}
	if err := images.Validate(); err != nil {
		return Errorf("%v", err)
	}
	if len(images) == 1 {
		return Success(images[0].Clone())
	}

	fraction := opts.OverlapFraction
	if fraction <= 0 || fraction >= 1 {
		fraction = DefaultOverlapFraction
	}
	overlapW := int(math.Round(float64(images[0].Width()) * fraction))
	if overlapW < 1 {
		overlapW = 1
	}

	// Each segment's offset is cumulative: drift between pair (i-1, i)
	// shifts segment i and everything after it.
	offsets := make([]int, len(images))
	for i := 1; i < len(images); i++ {
		if err := ctx.Err(); err != nil {
			return Errorf("composition canceled: %v", err)
		}
		left := images[i-1].RightStrip(overlapW)
		right := images[i].LeftStrip(overlapW)
		off, err := align.FindOffset(left, right, corr)
		if err != nil {
			if !errors.Is(err, align.ErrNoReliableAlignment) {
				return Errorf("correlation failed: %v", err)
			}
			slog.Debug("Correlation below floor, concatenating pair unshifted",
				"pair", i, "score", off.Score)
			offsets[i] = offsets[i-1]
			continue
		}
		// A positive DY means the right segment's content sits lower, so
		// shifting it up by DY lines the pair up.
		offsets[i] = offsets[i-1] - off.DY
	}

	fill := opts.FillColor
	if fill == nil {
		fill = color.White
	}
	aligned, err := align.ApplyOffsets(images, offsets, fill)
	if err != nil {
		return Errorf("alignment failed: %v", err)
	}
	return Stitch(ctx, aligned, Options{OverlapFraction: fraction, FillColor: fill}, cb)
}
