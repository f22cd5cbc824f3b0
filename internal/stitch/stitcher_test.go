package stitch

import (
	"context"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/leafstitch/internal/raster"
	"github.com/MeKo-Tech/leafstitch/internal/testutil"
)

var (
	red  = color.NRGBA{R: 255, A: 255}
	blue = color.NRGBA{B: 255, A: 255}
)

func TestStitch_EmptySequence(t *testing.T) {
	out := Stitch(context.Background(), raster.Sequence{}, Options{}, nil)
	assert.Equal(t, KindError, out.Kind)
	assert.Contains(t, out.Message, "no images to stitch")
}

func TestStitch_SingleImageUnchanged(t *testing.T) {
	img := testutil.GradientSegment(50, 30)

	out := Stitch(context.Background(), raster.Sequence{img}, Options{OverlapFraction: 0.1}, nil)
	require.Equal(t, KindSuccess, out.Kind)
	testutil.RequireSamePixels(t, img, out.Image)

	// The result is a copy, not the input.
	out.Image.NRGBA().SetNRGBA(0, 0, color.NRGBA{A: 255})
	r, _, _, _ := img.RGBAAt(0, 0)
	assert.Equal(t, uint8(0), r)
}

func TestStitch_WidthInvariant(t *testing.T) {
	tests := []struct {
		name      string
		widths    []int
		fraction  float64
		wantWidth int
	}{
		{name: "two equal segments", widths: []int{400, 400}, fraction: 0.10, wantWidth: 760},
		{name: "three equal segments", widths: []int{400, 400, 400}, fraction: 0.10, wantWidth: 1120},
		{name: "quarter overlap", widths: []int{200, 200}, fraction: 0.25, wantWidth: 350},
		{name: "zero fraction concatenates", widths: []int{100, 150}, fraction: 0, wantWidth: 250},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			images := make(raster.Sequence, len(tt.widths))
			for i, w := range tt.widths {
				images[i] = testutil.SolidSegment(w, 100, testutil.LeafTissue)
			}

			out := Stitch(context.Background(), images, Options{OverlapFraction: tt.fraction}, nil)
			require.Equal(t, KindSuccess, out.Kind)
			assert.Equal(t, tt.wantWidth, out.Image.Width())
			assert.Equal(t, 100, out.Image.Height())
		})
	}
}

func TestStitch_OverlapClampedToNarrowSegment(t *testing.T) {
	// The configured overlap (half of 400) exceeds the narrow middle
	// segment's width and is clamped per seam.
	images := raster.Sequence{
		testutil.SolidSegment(400, 50, testutil.LeafTissue),
		testutil.SolidSegment(100, 50, testutil.LeafTissue),
		testutil.SolidSegment(400, 50, testutil.LeafTissue),
	}

	out := Stitch(context.Background(), images, Options{OverlapFraction: 0.5}, nil)
	require.Equal(t, KindSuccess, out.Kind)
	// Seam 1 overlap: min(200, 400, 100) = 100. Seam 2: min(200, 100, 400) = 100.
	assert.Equal(t, 400+100+400-100-100, out.Image.Width())
}

func TestStitch_GradientBlend(t *testing.T) {
	images := raster.Sequence{
		testutil.SolidSegment(400, 100, red),
		testutil.SolidSegment(400, 100, blue),
	}

	out := Stitch(context.Background(), images, Options{OverlapFraction: 0.10}, nil)
	require.Equal(t, KindSuccess, out.Kind)
	require.Equal(t, 760, out.Image.Width())

	// Left of the seam: pure red.
	r, _, b, _ := out.Image.RGBAAt(359, 50)
	assert.Equal(t, uint8(255), r)
	assert.Equal(t, uint8(0), b)

	// Seam start: blend factor 0 keeps the previous segment.
	r, _, b, _ = out.Image.RGBAAt(360, 50)
	assert.Equal(t, uint8(255), r)
	assert.Equal(t, uint8(0), b)

	// Seam midpoint: a 50/50 mix.
	r, _, b, _ = out.Image.RGBAAt(380, 50)
	assert.Equal(t, uint8(128), r)
	assert.Equal(t, uint8(128), b)

	// Right of the seam: pure blue.
	r, _, b, _ = out.Image.RGBAAt(400, 50)
	assert.Equal(t, uint8(0), r)
	assert.Equal(t, uint8(255), b)

	// The blend is monotone across the strip.
	prevR := 255
	for x := 360; x < 400; x++ {
		rr, _, _, _ := out.Image.RGBAAt(x, 50)
		assert.LessOrEqual(t, int(rr), prevR, "red must not increase at x=%d", x)
		prevR = int(rr)
	}
}

func TestStitch_ThreeSegmentComposite(t *testing.T) {
	green := color.NRGBA{G: 255, A: 255}
	images := raster.Sequence{
		testutil.SolidSegment(400, 1000, red),
		testutil.SolidSegment(400, 1000, green),
		testutil.SolidSegment(400, 1000, blue),
	}

	out := Stitch(context.Background(), images, Options{OverlapFraction: 0.10}, nil)
	require.Equal(t, KindSuccess, out.Kind)
	require.Equal(t, 1120, out.Image.Width())
	require.Equal(t, 1000, out.Image.Height())

	checks := []struct {
		x       int
		r, g, b uint8
	}{
		{x: 0, r: 255},          // solid first segment
		{x: 359, r: 255},        // last pure column before seam one
		{x: 380, r: 128, g: 128}, // seam one midpoint
		{x: 400, g: 255},        // solid middle segment
		{x: 719, g: 255},        // last pure column before seam two
		{x: 740, g: 128, b: 128}, // seam two midpoint
		{x: 760, b: 255},        // solid last segment
		{x: 1119, b: 255},       // right edge
	}
	for _, c := range checks {
		r, g, b, _ := out.Image.RGBAAt(c.x, 500)
		assert.Equal(t, c.r, r, "red at x=%d", c.x)
		assert.Equal(t, c.g, g, "green at x=%d", c.x)
		assert.Equal(t, c.b, b, "blue at x=%d", c.x)
	}
}

func TestStitch_HeightMismatchFilled(t *testing.T) {
	images := raster.Sequence{
		testutil.SolidSegment(100, 200, red),
		testutil.SolidSegment(100, 150, blue),
	}

	out := Stitch(context.Background(), images, Options{OverlapFraction: 0.10}, nil)
	require.Equal(t, KindSuccess, out.Kind)
	assert.Equal(t, 200, out.Image.Height())

	// Below the shorter segment the canvas keeps the white fill.
	r, g, b, _ := out.Image.RGBAAt(150, 180)
	assert.Equal(t, uint8(255), r)
	assert.Equal(t, uint8(255), g)
	assert.Equal(t, uint8(255), b)

	// Inside the seam strip, rows only the taller segment covers take its
	// pixels unblended.
	r, _, _, _ = out.Image.RGBAAt(95, 180)
	assert.Equal(t, uint8(255), r)
	_, _, b, _ = out.Image.RGBAAt(95, 180)
	assert.Equal(t, uint8(0), b)
}

func TestStitch_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	images := raster.Sequence{
		testutil.SolidSegment(50, 50, red),
		testutil.SolidSegment(50, 50, blue),
	}
	out := Stitch(ctx, images, Options{OverlapFraction: 0.10}, nil)
	assert.Equal(t, KindError, out.Kind)
	assert.Contains(t, out.Message, "canceled")
}

// recordingCallback captures the progress event stream for ordering checks.
type recordingCallback struct {
	events []string
}

func (r *recordingCallback) OnStart(total int) {
	r.events = append(r.events, "start")
}

func (r *recordingCallback) OnProgress(current, total int) {
	r.events = append(r.events, "progress")
}

func (r *recordingCallback) OnComplete() {
	r.events = append(r.events, "complete")
}

func (r *recordingCallback) OnError(current int, err error) {
	r.events = append(r.events, "error")
}

func TestStitch_ProgressOrdering(t *testing.T) {
	images := raster.Sequence{
		testutil.SolidSegment(50, 50, red),
		testutil.SolidSegment(50, 50, blue),
		testutil.SolidSegment(50, 50, red),
	}

	cb := &recordingCallback{}
	out := Stitch(context.Background(), images, Options{OverlapFraction: 0.10}, cb)
	require.Equal(t, KindSuccess, out.Kind)
	assert.Equal(t, []string{"start", "progress", "progress", "complete"}, cb.events)
}

func TestLayout(t *testing.T) {
	images := raster.Sequence{
		testutil.SolidSegment(400, 10, red),
		testutil.SolidSegment(400, 10, blue),
		testutil.SolidSegment(400, 10, red),
	}

	positions, overlaps, total := layout(images, 0.10)
	assert.Equal(t, []int{0, 360, 720}, positions)
	assert.Equal(t, []int{0, 40, 40}, overlaps)
	assert.Equal(t, 1120, total)
}
