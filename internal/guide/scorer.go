// Package guide scores how well the live camera frame lines up with the
// previous segment, for real-time capture feedback. It shares the grayscale
// difference primitive with the correlation aligner but compares tiny
// downscaled strips so it is cheap enough to run per preview frame.
package guide

import (
	"math"

	"github.com/MeKo-Tech/leafstitch/internal/raster"
)

const (
	// Comparison strips are downscaled to fit within this box.
	maxCompareWidth  = 200
	maxCompareHeight = 100

	// NeutralScore is returned when either edge is absent, so the UI never
	// blocks a first capture.
	NeutralScore = 100
)

// Score rates the alignment of the previous segment's trailing edge against
// the live frame's leading edge on a 0-100 scale, where 100 means identical
// edges. Either input may be nil.
func Score(previousEdge, currentEdge *raster.Image) int {
	if previousEdge == nil || currentEdge == nil {
		return NeutralScore
	}

	prev := previousEdge.Fit(maxCompareWidth, maxCompareHeight)
	cur := currentEdge.Fit(maxCompareWidth, maxCompareHeight)

	w := min(prev.Width(), cur.Width())
	h := min(prev.Height(), cur.Height())
	if w < 1 || h < 1 {
		return NeutralScore
	}

	var sum float64
	for y := range h {
		for x := range w {
			sum += math.Abs(prev.Gray(x, y) - cur.Gray(x, y))
		}
	}
	meanDiff := sum / float64(w*h)

	score := int(math.Round((255.0 - meanDiff) / 255.0 * 100.0))
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}
