package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/leafstitch/internal/align"
	"github.com/MeKo-Tech/leafstitch/internal/stitch"
	"github.com/MeKo-Tech/leafstitch/internal/utils"
)

var stitchCmd = &cobra.Command{
	Use:   "stitch [flags] segment1 segment2 [segment3 ...]",
	Short: "Compose leaf segments into a panorama",
	Long: `Compose an ordered sequence of leaf segment images into a single
panorama. Segments must be given in capture order, left to right along the
leaf. Neighboring segments are joined with a linear gradient blend across
the configured overlap.

Examples:
  leafstitch stitch seg1.jpg seg2.jpg seg3.jpg -o leaf.jpg
  leafstitch stitch --overlap 0.15 --midrib *.jpg -o leaf.png
  leafstitch stitch --offsets 0,-12,8 seg*.jpg`,
	Args: cobra.MinimumNArgs(1),
	PreRun: func(cmd *cobra.Command, args []string) {
		_ = viper.BindPFlag("output.file", cmd.Flags().Lookup("output"))
		_ = viper.BindPFlag("stitch.overlap_fraction", cmd.Flags().Lookup("overlap"))
		_ = viper.BindPFlag("stitch.auto_overlap", cmd.Flags().Lookup("auto-overlap"))
		_ = viper.BindPFlag("midrib.enabled", cmd.Flags().Lookup("midrib"))
		_ = viper.BindPFlag("midrib.search_tolerance", cmd.Flags().Lookup("tolerance"))
		_ = viper.BindPFlag("output.jpeg_quality", cmd.Flags().Lookup("quality"))
	},
	RunE: runStitch,
}

func init() {
	rootCmd.AddCommand(stitchCmd)

	stitchCmd.Flags().StringP("output", "o", "", "output file for the composite (default from config)")
	stitchCmd.Flags().Float64("overlap", 0, "overlap fraction between neighbors, in (0,1)")
	stitchCmd.Flags().Bool("auto-overlap", false, "estimate the overlap fraction from the first segment pair")
	stitchCmd.Flags().Bool("midrib", false, "align segments vertically on the detected midrib")
	stitchCmd.Flags().Float64("tolerance", 0, "midrib search band as a fraction of image height")
	stitchCmd.Flags().IntSlice("offsets", nil, "manual per-segment vertical offsets (overrides --midrib)")
	stitchCmd.Flags().Bool("correlate", false, "refine vertical alignment by edge-strip correlation")
	stitchCmd.Flags().Int("quality", 0, "JPEG quality for the composite, 1-100")
	stitchCmd.Flags().Bool("progress", true, "show a progress bar on stderr")
}

func runStitch(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	images, err := utils.LoadSequence(args)
	if err != nil {
		return fmt.Errorf("failed to load segments: %w", err)
	}

	offsets, _ := cmd.Flags().GetIntSlice("offsets")
	correlate, _ := cmd.Flags().GetBool("correlate")
	showProgress, _ := cmd.Flags().GetBool("progress")

	b := stitch.NewBuilder().
		WithOverlap(cfg.Stitch.OverlapFraction).
		WithAutoOverlap(cfg.Stitch.AutoOverlap).
		WithMidribAlign(cfg.Midrib.Enabled).
		WithSearchTolerance(cfg.Midrib.SearchTolerance).
		WithLimits(cfg.Stitch.MaxSegments, cfg.Stitch.MaxPixels)
	if len(offsets) > 0 {
		b = b.WithManualOffsets(offsets)
	}
	pipeline, err := b.Build()
	if err != nil {
		return err
	}

	var cb stitch.ProgressCallback = stitch.NoOpProgressCallback{}
	if showProgress {
		cb = stitch.NewConsoleProgressCallback(cmd.ErrOrStderr(), "Stitching ")
	}

	// Cancel composition on Ctrl-C instead of leaving a partial write.
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var outcome stitch.Outcome
	if correlate {
		corr := align.CorrelatorConfig{
			SearchRangeX: cfg.Correlator.SearchRangeX,
			SearchRangeY: cfg.Correlator.SearchRangeY,
			Downsample:   cfg.Correlator.Downsample,
			SampleStride: cfg.Correlator.SampleStride,
			MinScore:     cfg.Correlator.MinScore,
		}
		outcome = stitch.StitchCorrelated(ctx, images, stitch.Options{
			OverlapFraction: cfg.Stitch.OverlapFraction,
		}, corr, cb)
	} else {
		outcome = pipeline.Process(ctx, images, cb)
	}

	if err := outcome.Err(); err != nil {
		return err
	}

	output := cfg.Output.File
	if output == "" {
		output = "composite.jpg"
	}
	if err := utils.SaveComposite(outcome.Image, output, cfg.Output.JPEGQuality); err != nil {
		return fmt.Errorf("failed to save composite: %w", err)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Composite written to %s (%dx%d, %d segments)\n",
		output, outcome.Image.Width(), outcome.Image.Height(), len(images))
	return nil
}
