package align

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/leafstitch/internal/midrib"
	"github.com/MeKo-Tech/leafstitch/internal/raster"
	"github.com/MeKo-Tech/leafstitch/internal/testutil"
)

func TestPlanOffsets(t *testing.T) {
	images := raster.Sequence{
		testutil.MidribSegment(100, 200, 100, 6),
		testutil.MidribSegment(100, 200, 80, 6),
		testutil.MidribSegment(100, 200, 120, 6),
	}

	plan, err := PlanOffsets(images, midrib.DefaultSearchTolerance, -1)
	require.NoError(t, err)
	require.Len(t, plan.Offsets, 3)
	require.Len(t, plan.Detections, 3)

	// The first segment anchors the reference, so its offset is zero; a
	// segment whose midrib sits higher gets a positive offset that draws it
	// lower.
	assert.Equal(t, 0, plan.Offsets[0])
	assert.InDelta(t, 20, plan.Offsets[1], 4)
	assert.InDelta(t, -20, plan.Offsets[2], 4)
	assert.Equal(t, plan.Detections[0].Y, plan.ReferenceY)
}

func TestPlanOffsets_ExplicitReference(t *testing.T) {
	images := raster.Sequence{testutil.MidribSegment(100, 200, 100, 6)}

	plan, err := PlanOffsets(images, midrib.DefaultSearchTolerance, 150)
	require.NoError(t, err)
	assert.Equal(t, 150, plan.ReferenceY)
	assert.InDelta(t, 50, plan.Offsets[0], 4)
}

func TestPlanOffsets_EmptySequence(t *testing.T) {
	_, err := PlanOffsets(raster.Sequence{}, midrib.DefaultSearchTolerance, -1)
	require.Error(t, err)
}

func TestManualPlan_CopiesOffsets(t *testing.T) {
	offsets := []int{1, -2, 3}
	plan := ManualPlan(offsets)

	offsets[0] = 99
	assert.Equal(t, []int{1, -2, 3}, plan.Offsets)
	assert.Nil(t, plan.Detections)
}

func TestApplyOffsets(t *testing.T) {
	images := raster.Sequence{
		testutil.SolidSegment(10, 100, color.NRGBA{R: 255, A: 255}),
		testutil.SolidSegment(10, 100, color.NRGBA{B: 255, A: 255}),
	}

	shifted, err := ApplyOffsets(images, []int{0, 20}, color.White)
	require.NoError(t, err)
	require.Len(t, shifted, 2)

	// Canvas grows by the positive offset; all segments share its height.
	assert.Equal(t, 120, shifted[0].Height())
	assert.Equal(t, 120, shifted[1].Height())

	// Segment 0 stays at the top, segment 1 is drawn 20 rows lower. The blue
	// segment has a zero red channel, so red distinguishes it from white fill.
	_, g0, _, _ := shifted[0].RGBAAt(5, 0)
	assert.Equal(t, uint8(0), g0, "red segment content at the top")
	r, _, _, _ := shifted[1].RGBAAt(5, 0)
	assert.Equal(t, uint8(255), r, "top rows of shifted segment are white fill")
	r, _, _, _ = shifted[1].RGBAAt(5, 20)
	assert.Equal(t, uint8(0), r, "blue segment content starts at its offset")
}

func TestApplyOffsets_NegativeOffsetsNormalized(t *testing.T) {
	images := raster.Sequence{
		testutil.SolidSegment(10, 100, color.NRGBA{R: 255, A: 255}),
		testutil.SolidSegment(10, 100, color.NRGBA{B: 255, A: 255}),
	}

	shifted, err := ApplyOffsets(images, []int{0, -30}, color.White)
	require.NoError(t, err)

	// Shifting up by 30 expands the canvas the same amount and pushes the
	// zero-offset segment down so nothing is clipped.
	assert.Equal(t, 130, shifted[0].Height())
	r, _, _, _ := shifted[1].RGBAAt(5, 0)
	assert.Equal(t, uint8(0), r, "negative-offset segment starts at the canvas top")
	_, g, _, _ := shifted[0].RGBAAt(5, 29)
	assert.Equal(t, uint8(255), g, "rows above the pushed-down segment are fill")
	_, g, _, _ = shifted[0].RGBAAt(5, 30)
	assert.Equal(t, uint8(0), g, "red segment content starts after the adjustment")
}

func TestApplyOffsets_CountMismatch(t *testing.T) {
	images := raster.Sequence{testutil.SolidSegment(10, 10, color.White)}
	_, err := ApplyOffsets(images, []int{0, 1}, color.White)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match")
}

func TestApplyOffsets_ManualMatchesDetected(t *testing.T) {
	images := raster.Sequence{
		testutil.MidribSegment(60, 200, 100, 6),
		testutil.MidribSegment(60, 200, 90, 6),
	}

	plan, err := PlanOffsets(images, midrib.DefaultSearchTolerance, -1)
	require.NoError(t, err)

	detected, err := ApplyOffsets(images, plan.Offsets, color.White)
	require.NoError(t, err)
	manual, err := ApplyOffsets(images, ManualPlan(plan.Offsets).Offsets, color.White)
	require.NoError(t, err)

	for i := range detected {
		testutil.RequireSamePixels(t, detected[i], manual[i])
	}
}

func TestApplyOffsets_RoundTripRealigns(t *testing.T) {
	images := raster.Sequence{
		testutil.MidribSegment(80, 200, 100, 8),
		testutil.MidribSegment(80, 200, 70, 8),
	}

	plan, err := PlanOffsets(images, midrib.DefaultSearchTolerance, -1)
	require.NoError(t, err)
	shifted, err := ApplyOffsets(images, plan.Offsets, color.White)
	require.NoError(t, err)

	// After shifting, re-detection should find both midribs on the same row.
	again := midrib.DetectAll(shifted, midrib.DefaultSearchTolerance)
	assert.InDelta(t, again[0].Y, again[1].Y, 4)
}

func TestApplyOffsetsPreview(t *testing.T) {
	images := raster.Sequence{
		testutil.SolidSegment(100, 200, color.NRGBA{R: 255, A: 255}),
		testutil.SolidSegment(100, 200, color.NRGBA{B: 255, A: 255}),
	}

	preview, err := ApplyOffsetsPreview(images, []int{0, 40}, color.White, 0.25)
	require.NoError(t, err)

	// 200 rows scale to 50, the 40px offset to 10.
	assert.Equal(t, 25, preview[0].Width())
	assert.Equal(t, 60, preview[0].Height())
}

func TestApplyOffsetsPreview_InvalidScaleUsesDefault(t *testing.T) {
	images := raster.Sequence{testutil.SolidSegment(100, 100, color.White)}

	preview, err := ApplyOffsetsPreview(images, []int{0}, color.White, -1)
	require.NoError(t, err)
	assert.Equal(t, 25, preview[0].Width())
}
