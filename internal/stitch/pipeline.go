package stitch

import (
	"context"
	"fmt"
	"image/color"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/leafstitch/internal/align"
	"github.com/MeKo-Tech/leafstitch/internal/midrib"
	"github.com/MeKo-Tech/leafstitch/internal/raster"
)

// Config holds configuration for the full capture-to-composite pipeline.
type Config struct {
	// OverlapFraction between neighboring segments, in (0,1).
	OverlapFraction float64
	// AutoOverlap estimates the overlap fraction from the first segment
	// pair instead of using OverlapFraction.
	AutoOverlap bool
	// MidribAlign enables detection-driven vertical alignment.
	MidribAlign bool
	// SearchTolerance is the midrib detector's search band fraction.
	SearchTolerance float64
	// ManualOffsets, when non-empty, bypasses detection and applies these
	// per-segment vertical offsets instead.
	ManualOffsets []int
	// FillColor for expanded canvas and composition gaps. Nil means white.
	FillColor color.Color
	// Correlator tunes auto-overlap estimation.
	Correlator align.CorrelatorConfig

	// MaxSegments and MaxPixels cap input size; composition time and memory
	// scale linearly with both and there is no internal timeout.
	MaxSegments int
	MaxPixels   int64
}

// DefaultConfig returns pipeline defaults suitable for field captures.
func DefaultConfig() Config {
	return Config{
		OverlapFraction: DefaultOverlapFraction,
		SearchTolerance: midrib.DefaultSearchTolerance,
		FillColor:       color.White,
		Correlator:      align.DefaultCorrelatorConfig(),
		MaxSegments:     32,
		MaxPixels:       256 << 20, // 256 megapixels across all segments
	}
}

// Validate checks configuration ranges.
func (c Config) Validate() error {
	if c.OverlapFraction <= 0 || c.OverlapFraction >= 1 {
		return fmt.Errorf("overlap fraction %.3f out of range (0,1)", c.OverlapFraction)
	}
	if c.SearchTolerance <= 0 || c.SearchTolerance > 1 {
		return fmt.Errorf("search tolerance %.3f out of range (0,1]", c.SearchTolerance)
	}
	if c.MaxSegments < 1 {
		return fmt.Errorf("max segments %d must be positive", c.MaxSegments)
	}
	return nil
}

// Builder constructs a Pipeline with fluent configuration.
type Builder struct {
	cfg Config
}

// NewBuilder creates a pipeline builder with defaults.
func NewBuilder() *Builder { return &Builder{cfg: DefaultConfig()} }

// WithOverlap sets the expected overlap fraction.
func (b *Builder) WithOverlap(fraction float64) *Builder {
	if fraction > 0 {
		b.cfg.OverlapFraction = fraction
	}
	return b
}

// WithAutoOverlap toggles overlap estimation from the first segment pair.
func (b *Builder) WithAutoOverlap(enabled bool) *Builder {
	b.cfg.AutoOverlap = enabled
	return b
}

// WithMidribAlign toggles detection-driven vertical alignment.
func (b *Builder) WithMidribAlign(enabled bool) *Builder {
	b.cfg.MidribAlign = enabled
	return b
}

// WithSearchTolerance sets the midrib search band fraction.
func (b *Builder) WithSearchTolerance(tolerance float64) *Builder {
	if tolerance > 0 {
		b.cfg.SearchTolerance = tolerance
	}
	return b
}

// WithManualOffsets sets operator-supplied vertical offsets.
func (b *Builder) WithManualOffsets(offsets []int) *Builder {
	b.cfg.ManualOffsets = offsets
	return b
}

// WithFillColor sets the canvas background color.
func (b *Builder) WithFillColor(c color.Color) *Builder {
	if c != nil {
		b.cfg.FillColor = c
	}
	return b
}

// WithLimits caps accepted input size.
func (b *Builder) WithLimits(maxSegments int, maxPixels int64) *Builder {
	if maxSegments > 0 {
		b.cfg.MaxSegments = maxSegments
	}
	if maxPixels > 0 {
		b.cfg.MaxPixels = maxPixels
	}
	return b
}

// Build validates the configuration and returns a Pipeline.
func (b *Builder) Build() (*Pipeline, error) {
	if err := b.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}
	return &Pipeline{cfg: b.cfg}, nil
}

// Pipeline runs detection, alignment and composition as one synchronous,
// CPU-bound operation. It performs no I/O; callers load segments before and
// persist the composite after. Run it from a background goroutine when a UI
// thread is involved.
type Pipeline struct {
	cfg Config
}

// Config returns a copy of the pipeline configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// Process aligns and stitches the sequence, returning a terminal outcome.
// cb may be nil.
func (p *Pipeline) Process(ctx context.Context, images raster.Sequence, cb ProgressCallback) Outcome {
	start := time.Now()

	if len(images) == 0 {
		return Errorf("no images to stitch")
	}
	if err := images.Validate(); err != nil {
		return Errorf("%v", err)
	}
	if len(images) > p.cfg.MaxSegments {
		return Errorf("segment count %d exceeds limit %d", len(images), p.cfg.MaxSegments)
	}
	if px := images.TotalPixels(); p.cfg.MaxPixels > 0 && px > p.cfg.MaxPixels {
		return Errorf("total pixel count %d exceeds limit %d", px, p.cfg.MaxPixels)
	}

	overlap := p.cfg.OverlapFraction
	if p.cfg.AutoOverlap && len(images) > 1 {
		estimated, err := align.EstimateOverlap(images[0], images[1], p.cfg.Correlator)
		if err != nil {
			slog.Debug("Overlap estimation unreliable, keeping configured fraction",
				"configured", overlap, "error", err)
		} else {
			slog.Debug("Estimated overlap fraction", "fraction", estimated)
			overlap = estimated
		}
	}

	aligned, err := p.alignSequence(images)
	if err != nil {
		return Errorf("alignment failed: %v", err)
	}
	if err := ctx.Err(); err != nil {
		return Errorf("composition canceled: %v", err)
	}

	outcome := Stitch(ctx, aligned, Options{OverlapFraction: overlap, FillColor: p.cfg.FillColor}, cb)
	if outcome.Kind == KindSuccess {
		slog.Info("Composite produced",
			"segments", len(images),
			"width", outcome.Image.Width(),
			"height", outcome.Image.Height(),
			"elapsed", time.Since(start).Round(time.Millisecond))
	}
	return outcome
}

// ProcessStream runs Process and delivers progress outcomes followed by
// exactly one terminal outcome on the returned channel. The channel is
// closed after the terminal outcome.
func (p *Pipeline) ProcessStream(ctx context.Context, images raster.Sequence) <-chan Outcome {
	ch := make(chan Outcome, 8)
	go func() {
		defer close(ch)
		cb := &streamProgress{ch: ch}
		ch <- p.Process(ctx, images, cb)
	}()
	return ch
}

// alignSequence applies manual offsets when supplied, detection-driven
// offsets when enabled, and otherwise passes the sequence through untouched.
func (p *Pipeline) alignSequence(images raster.Sequence) (raster.Sequence, error) {
	switch {
	case len(p.cfg.ManualOffsets) > 0:
		plan := align.ManualPlan(p.cfg.ManualOffsets)
		return align.ApplyOffsets(images, plan.Offsets, p.cfg.FillColor)
	case p.cfg.MidribAlign:
		plan, err := align.PlanOffsets(images, p.cfg.SearchTolerance, -1)
		if err != nil {
			return nil, err
		}
		slog.Debug("Planned midrib offsets", "reference_y", plan.ReferenceY, "offsets", plan.Offsets)
		return align.ApplyOffsets(images, plan.Offsets, p.cfg.FillColor)
	default:
		return images, nil
	}
}

// streamProgress adapts ProgressCallback events onto an outcome channel.
type streamProgress struct {
	ch chan<- Outcome
}

func (s *streamProgress) OnStart(total int) {}

func (s *streamProgress) OnProgress(current, total int) {
	s.ch <- Progress(current, total)
}

func (s *streamProgress) OnComplete() {}

func (s *streamProgress) OnError(current int, err error) {}
