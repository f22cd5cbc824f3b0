// Package midrib locates the central leaf vein in a transmittance-lit
// segment image. Backlighting makes the midrib greener and brighter than the
// surrounding tissue, so the detector searches for the horizontal band with
// the strongest green-channel dominance.
package midrib

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/MeKo-Tech/leafstitch/internal/raster"
)

const (
	// DefaultSearchTolerance is the fraction of image height searched when
	// the caller passes an out-of-range tolerance.
	DefaultSearchTolerance = 0.5

	// bandHeightFraction sizes the sliding window relative to image height.
	bandHeightFraction = 0.03

	// minBandWidth is the smallest window height in rows.
	minBandWidth = 3

	// dominanceWeight and brightnessWeight combine the two per-window
	// signals into a single score.
	dominanceWeight  = 0.6
	brightnessWeight = 0.4
)

// Detection is the result of scanning one image for the midrib.
type Detection struct {
	// Y is the detected band center row.
	Y int `json:"y"`
	// Confidence in [0,1]: how far the winning band's green dominance
	// exceeds the search-band average, normalized.
	Confidence float64 `json:"confidence"`
	// BandWidth is the sliding window height in rows.
	BandWidth int `json:"band_width"`
}

// Detect scans img for the row band most likely to be the leaf midrib.
//
// tolerance is the fraction of image height to search, centered vertically;
// values outside (0,1] fall back to DefaultSearchTolerance. A degenerate
// image (no scorable window) yields a zero-confidence detection centered on
// the image midpoint rather than an error, so callers can decide whether low
// confidence warrants manual alignment.
//
// Detect only reads its input and is safe to run concurrently across
// different images.
func Detect(img *raster.Image, tolerance float64) Detection {
	if tolerance <= 0 || tolerance > 1 {
		tolerance = DefaultSearchTolerance
	}

	w := img.Width()
	h := img.Height()
	bandWidth := bandWidthFor(h)
	fallback := Detection{Y: h / 2, Confidence: 0, BandWidth: bandWidth}

	searchH := int(math.Round(float64(h) * tolerance))
	if searchH < 1 {
		searchH = 1
	}
	startY := (h - searchH) / 2

	// Per-row green dominance and mean green value over the search band.
	dominance := make([]float64, searchH)
	meanGreen := make([]float64, searchH)
	for i := range searchH {
		y := startY + i
		var greenSum, allSum float64
		for x := range w {
			r, g, b, a := img.RGBAAt(x, y)
			greenSum += float64(g)
			allSum += float64(r) + float64(g) + float64(b) + float64(a)
		}
		if allSum > 0 {
			dominance[i] = greenSum / allSum
		}
		if w > 0 {
			meanGreen[i] = greenSum / float64(w)
		}
	}

	if searchH < bandWidth {
		return fallback
	}

	// Slide the window and keep the best combined score. A windowed average
	// is more robust to single-row noise than a per-row maximum.
	bestScore := -1.0
	bestStart := -1
	bestDominance := 0.0
	for y0 := 0; y0+bandWidth <= searchH; y0++ {
		avgDom := stat.Mean(dominance[y0:y0+bandWidth], nil)
		avgGreen := stat.Mean(meanGreen[y0:y0+bandWidth], nil)
		score := dominanceWeight*avgDom + brightnessWeight*(avgGreen/255.0)
		if score > bestScore {
			bestScore = score
			bestStart = y0
			bestDominance = avgDom
		}
	}
	if bestStart < 0 {
		return fallback
	}

	bandMean := stat.Mean(dominance, nil)
	confidence := 0.0
	if bandMean > 0 {
		confidence = clamp01((bestDominance - bandMean) / bandMean)
	}

	return Detection{
		Y:          startY + bestStart + bandWidth/2,
		Confidence: confidence,
		BandWidth:  bandWidth,
	}
}

// DetectAll runs Detect across a sequence, one goroutine per image, and
// returns detections in input order.
func DetectAll(images raster.Sequence, tolerance float64) []Detection {
	results := make([]Detection, len(images))
	done := make(chan struct{})
	for i, img := range images {
		go func(i int, img *raster.Image) {
			results[i] = Detect(img, tolerance)
			done <- struct{}{}
		}(i, img)
	}
	for range images {
		<-done
	}
	close(done)
	return results
}

func bandWidthFor(height int) int {
	bw := int(math.Round(float64(height) * bandHeightFraction))
	if bw < minBandWidth {
		bw = minBandWidth
	}
	return bw
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
