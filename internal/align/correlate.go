package align

import (
	"errors"
	"math"

	"github.com/MeKo-Tech/leafstitch/internal/raster"
)

// ErrNoReliableAlignment is returned by FindOffset when the best candidate
// scores below the configured floor.
var ErrNoReliableAlignment = errors.New("no reliable alignment found")

// CorrelatorConfig tunes the brute-force offset search.
type CorrelatorConfig struct {
	// SearchRangeX and SearchRangeY bound the candidate offsets at full
	// scale, in pixels.
	SearchRangeX int
	SearchRangeY int
	// Downsample is the shrink factor applied to both strips before the
	// search.
	Downsample int
	// SampleStride skips pixels within each candidate evaluation.
	SampleStride int
	// MinScore is the acceptance floor for the best candidate, in the same
	// 0..255 space as Offset.Score. Zero disables the floor and always
	// accepts the best candidate.
	MinScore float64
}

// DefaultCorrelatorConfig returns the standard search parameters.
func DefaultCorrelatorConfig() CorrelatorConfig {
	return CorrelatorConfig{
		SearchRangeX: 20,
		SearchRangeY: 50,
		Downsample:   4,
		SampleStride: 2,
		MinScore:     0,
	}
}

// Offset is a 2D displacement between two edge strips. DX positive shifts
// right, DY positive shifts down. Score is the mean grayscale similarity in
// [0,255], higher is better; it is a relative quantity with no absolute
// calibration, so compare it across candidates rather than against a fixed
// constant.
type Offset struct {
	DX    int     `json:"dx"`
	DY    int     `json:"dy"`
	Score float64 `json:"score"`
}

// FindOffset estimates the displacement between the trailing edge strip of
// the left image and the leading edge strip of the right image by exhaustive
// search over downsampled grayscale correlation.
func FindOffset(leftEdge, rightEdge *raster.Image, cfg CorrelatorConfig) (Offset, error) {
	if leftEdge == nil || rightEdge == nil {
		return Offset{}, &raster.ProcessingError{Operation: "find_offset", Err: errors.New("nil edge strip")}
	}
	if cfg.Downsample < 1 {
		cfg.Downsample = 1
	}
	if cfg.SampleStride < 1 {
		cfg.SampleStride = 1
	}

	scale := 1.0 / float64(cfg.Downsample)
	left := leftEdge.Scale(scale)
	right := rightEdge.Scale(scale)

	rangeX := cfg.SearchRangeX / cfg.Downsample
	rangeY := cfg.SearchRangeY / cfg.Downsample

	best := Offset{Score: -1}
	for dy := -rangeY; dy <= rangeY; dy++ {
		for dx := -rangeX; dx <= rangeX; dx++ {
			score := correlate(left, right, dx, dy, cfg.SampleStride)
			if score > best.Score {
				best = Offset{DX: dx, DY: dy, Score: score}
			}
		}
	}

	best.DX *= cfg.Downsample
	best.DY *= cfg.Downsample
	if best.Score < 0 {
		return Offset{}, ErrNoReliableAlignment
	}
	if cfg.MinScore > 0 && best.Score < cfg.MinScore {
		return best, ErrNoReliableAlignment
	}
	return best, nil
}

// correlate scores one candidate offset: every stride-th pixel pair is
// converted to grayscale and 255 - |grayL - grayR| is accumulated, then
// normalized by the sample count. Out-of-bounds pairs are skipped.
func correlate(left, right *raster.Image, dx, dy, stride int) float64 {
	w := left.Width()
	h := left.Height()
	rw := right.Width()
	rh := right.Height()

	var sum float64
	var count int
	for y := 0; y < h; y += stride {
		ry := y + dy
		if ry < 0 || ry >= rh {
			continue
		}
		for x := 0; x < w; x += stride {
			rx := x + dx
			if rx < 0 || rx >= rw {
				continue
			}
			diff := math.Abs(left.Gray(x, y) - right.Gray(rx, ry))
			sum += 255.0 - diff
			count++
		}
	}
	if count == 0 {
		return -1
	}
	return sum / float64(count)
}

// overlapCandidates are the fractions tried by EstimateOverlap.
var overlapCandidates = []float64{0.10, 0.15, 0.20, 0.25, 0.30, 0.35, 0.40}

// EstimateOverlap auto-detects the capture overlap fraction between two
// neighboring segments by scoring each candidate fraction's edge strips with
// zero-offset grayscale correlation and returning the best one. Useful when
// the overlap is not fixed by a physical capture guide.
func EstimateOverlap(left, right *raster.Image, cfg CorrelatorConfig) (float64, error) {
	if left == nil || right == nil {
		return 0, &raster.ProcessingError{Operation: "estimate_overlap", Err: errors.New("nil image")}
	}
	if cfg.Downsample < 1 {
		cfg.Downsample = 1
	}
	if cfg.SampleStride < 1 {
		cfg.SampleStride = 1
	}

	scale := 1.0 / float64(cfg.Downsample)
	bestFraction := overlapCandidates[0]
	bestScore := -1.0
	for _, fraction := range overlapCandidates {
		overlapW := int(math.Round(float64(left.Width()) * fraction))
		if overlapW < 1 {
			continue
		}
		l := left.RightStrip(overlapW).Scale(scale)
		r := right.LeftStrip(overlapW).Scale(scale)
		score := correlate(l, r, 0, 0, cfg.SampleStride)
		if score > bestScore {
			bestScore = score
			bestFraction = fraction
		}
	}
	if bestScore < 0 {
		return 0, ErrNoReliableAlignment
	}
	return bestFraction, nil
}
