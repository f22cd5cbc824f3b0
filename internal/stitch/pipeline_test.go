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

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults valid", mutate: func(c *Config) {}},
		{name: "overlap too small", mutate: func(c *Config) { c.OverlapFraction = 0 }, wantErr: "overlap fraction"},
		{name: "overlap too large", mutate: func(c *Config) { c.OverlapFraction = 1 }, wantErr: "overlap fraction"},
		{name: "bad tolerance", mutate: func(c *Config) { c.SearchTolerance = 1.5 }, wantErr: "search tolerance"},
		{name: "bad segment cap", mutate: func(c *Config) { c.MaxSegments = 0 }, wantErr: "max segments"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestBuilder(t *testing.T) {
	p, err := NewBuilder().
		WithOverlap(0.2).
		WithMidribAlign(true).
		WithSearchTolerance(0.3).
		WithFillColor(color.Black).
		WithLimits(4, 1<<20).
		Build()
	require.NoError(t, err)

	cfg := p.Config()
	assert.InDelta(t, 0.2, cfg.OverlapFraction, 0.0001)
	assert.True(t, cfg.MidribAlign)
	assert.InDelta(t, 0.3, cfg.SearchTolerance, 0.0001)
	assert.Equal(t, 4, cfg.MaxSegments)
	assert.Equal(t, int64(1<<20), cfg.MaxPixels)
}

func TestBuilder_IgnoresInvalidValues(t *testing.T) {
	p, err := NewBuilder().
		WithOverlap(-1).
		WithSearchTolerance(0).
		WithFillColor(nil).
		WithLimits(0, 0).
		Build()
	require.NoError(t, err)

	cfg := p.Config()
	assert.InDelta(t, DefaultOverlapFraction, cfg.OverlapFraction, 0.0001)
	assert.NotNil(t, cfg.FillColor)
}

func TestBuilder_InvalidConfigRejected(t *testing.T) {
	b := NewBuilder()
	b.cfg.OverlapFraction = 2
	_, err := b.Build()
	require.Error(t, err)
}

func TestPipelineProcess_Basic(t *testing.T) {
	p, err := NewBuilder().WithOverlap(0.10).Build()
	require.NoError(t, err)

	images := raster.Sequence{
		testutil.SolidSegment(100, 50, testutil.LeafTissue),
		testutil.SolidSegment(100, 50, testutil.LeafTissue),
	}
	out := p.Process(context.Background(), images, nil)
	require.Equal(t, KindSuccess, out.Kind)
	assert.Equal(t, 190, out.Image.Width())
}

func TestPipelineProcess_EmptyInput(t *testing.T) {
	p, err := NewBuilder().Build()
	require.NoError(t, err)

	out := p.Process(context.Background(), raster.Sequence{}, nil)
	assert.Equal(t, KindError, out.Kind)
	assert.Contains(t, out.Message, "no images to stitch")
}

func TestPipelineProcess_SegmentCap(t *testing.T) {
	p, err := NewBuilder().WithLimits(2, 0).Build()
	require.NoError(t, err)

	images := raster.Sequence{
		testutil.SolidSegment(10, 10, testutil.LeafTissue),
		testutil.SolidSegment(10, 10, testutil.LeafTissue),
		testutil.SolidSegment(10, 10, testutil.LeafTissue),
	}
	out := p.Process(context.Background(), images, nil)
	assert.Equal(t, KindError, out.Kind)
	assert.Contains(t, out.Message, "exceeds limit")
}

func TestPipelineProcess_PixelCap(t *testing.T) {
	p, err := NewBuilder().WithLimits(32, 100).Build()
	require.NoError(t, err)

	images := raster.Sequence{testutil.SolidSegment(20, 20, testutil.LeafTissue)}
	out := p.Process(context.Background(), images, nil)
	assert.Equal(t, KindError, out.Kind)
	assert.Contains(t, out.Message, "pixel count")
}

func TestPipelineProcess_MidribAlignment(t *testing.T) {
	p, err := NewBuilder().WithOverlap(0.10).WithMidribAlign(true).Build()
	require.NoError(t, err)

	// Midribs 30 rows apart: alignment expands the canvas accordingly.
	images := raster.Sequence{
		testutil.MidribSegment(100, 200, 100, 6),
		testutil.MidribSegment(100, 200, 70, 6),
	}
	out := p.Process(context.Background(), images, nil)
	require.Equal(t, KindSuccess, out.Kind)
	assert.Equal(t, 190, out.Image.Width())
	assert.InDelta(t, 230, out.Image.Height(), 4)
}

func TestPipelineProcess_ManualOffsetsWinOverMidrib(t *testing.T) {
	p, err := NewBuilder().
		WithOverlap(0.10).
		WithMidribAlign(true).
		WithManualOffsets([]int{0, 50}).
		Build()
	require.NoError(t, err)

	images := raster.Sequence{
		testutil.MidribSegment(100, 200, 100, 6),
		testutil.MidribSegment(100, 200, 100, 6),
	}
	out := p.Process(context.Background(), images, nil)
	require.Equal(t, KindSuccess, out.Kind)

	// Detection would yield near-zero offsets; the manual 50 forces expansion.
	assert.Equal(t, 250, out.Image.Height())
}

func TestPipelineProcess_AutoOverlap(t *testing.T) {
	p, err := NewBuilder().WithOverlap(0.10).WithAutoOverlap(true).Build()
	require.NoError(t, err)

	// Featureless segments correlate equally everywhere; the pipeline must
	// still produce a composite with some candidate fraction.
	images := raster.Sequence{
		testutil.SolidSegment(200, 100, testutil.LeafTissue),
		testutil.SolidSegment(200, 100, testutil.LeafTissue),
	}
	out := p.Process(context.Background(), images, nil)
	require.Equal(t, KindSuccess, out.Kind)
	assert.Less(t, out.Image.Width(), 400)
}

func TestProcessStream(t *testing.T) {
	p, err := NewBuilder().WithOverlap(0.10).Build()
	require.NoError(t, err)

	images := raster.Sequence{
		testutil.SolidSegment(50, 50, testutil.LeafTissue),
		testutil.SolidSegment(50, 50, testutil.LeafTissue),
		testutil.SolidSegment(50, 50, testutil.LeafTissue),
	}

	var progress, terminal int
	var last Outcome
	for out := range p.ProcessStream(context.Background(), images) {
		if out.Terminal() {
			terminal++
			last = out
		} else {
			progress++
			assert.Equal(t, 2, out.Total)
		}
	}

	assert.Equal(t, 2, progress, "one progress outcome per seam")
	assert.Equal(t, 1, terminal, "exactly one terminal outcome")
	assert.Equal(t, KindSuccess, last.Kind)
}

func TestProcessStream_Error(t *testing.T) {
	p, err := NewBuilder().Build()
	require.NoError(t, err)

	var outcomes []Outcome
	for out := range p.ProcessStream(context.Background(), raster.Sequence{}) {
		outcomes = append(outcomes, out)
	}
	require.Len(t, outcomes, 1)
	assert.Equal(t, KindError, outcomes[0].Kind)
}
