package cmd

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/leafstitch/internal/align"
	"github.com/MeKo-Tech/leafstitch/internal/utils"
)

var alignCmd = &cobra.Command{
	Use:   "align [flags] segment1 segment2 [segment3 ...]",
	Short: "Plan and apply vertical alignment offsets",
	Long: `Detect the midrib in every segment and compute the vertical offset
that brings each one onto a common reference row. By default only the plan
is printed; with --apply the shifted segments are written next to the
originals on an expanded canvas.

Examples:
  leafstitch align seg1.jpg seg2.jpg seg3.jpg
  leafstitch align --reference-y 480 --format json seg*.jpg
  leafstitch align --apply --preview seg*.jpg`,
	Args: cobra.MinimumNArgs(1),
	PreRun: func(cmd *cobra.Command, args []string) {
		_ = viper.BindPFlag("midrib.search_tolerance", cmd.Flags().Lookup("tolerance"))
		_ = viper.BindPFlag("output.format", cmd.Flags().Lookup("format"))
	},
	RunE: runAlign,
}

func init() {
	rootCmd.AddCommand(alignCmd)

	alignCmd.Flags().Float64("tolerance", 0, "midrib search band as a fraction of image height")
	alignCmd.Flags().Int("reference-y", -1, "reference row for alignment (default: first segment's midrib)")
	alignCmd.Flags().Bool("apply", false, "write shifted segments to <name>_aligned.png")
	alignCmd.Flags().Bool("preview", false, "apply at preview scale instead of full resolution")
	alignCmd.Flags().String("format", "", "output format (text, json)")
}

func runAlign(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	images, err := utils.LoadSequence(args)
	if err != nil {
		return fmt.Errorf("failed to load segments: %w", err)
	}

	referenceY, _ := cmd.Flags().GetInt("reference-y")
	plan, err := align.PlanOffsets(images, cfg.Midrib.SearchTolerance, referenceY)
	if err != nil {
		return fmt.Errorf("failed to plan offsets: %w", err)
	}

	if cfg.Output.Format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(plan); err != nil {
			return err
		}
	} else {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Reference row: %d\n", plan.ReferenceY)
		for i, off := range plan.Offsets {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: offset %+d (midrib y=%d, confidence %.2f)\n",
				args[i], off, plan.Detections[i].Y, plan.Detections[i].Confidence)
		}
	}

	apply, _ := cmd.Flags().GetBool("apply")
	if !apply {
		return nil
	}

	preview, _ := cmd.Flags().GetBool("preview")
	var shifted = images
	if preview {
		shifted, err = align.ApplyOffsetsPreview(images, plan.Offsets, nil, cfg.Midrib.PreviewScale)
	} else {
		shifted, err = align.ApplyOffsets(images, plan.Offsets, nil)
	}
	if err != nil {
		return fmt.Errorf("failed to apply offsets: %w", err)
	}

	for i, img := range shifted {
		base := strings.TrimSuffix(args[i], filepath.Ext(args[i]))
		out := base + "_aligned.png"
		if err := utils.SaveComposite(img, out, cfg.Output.JPEGQuality); err != nil {
			return fmt.Errorf("failed to save %s: %w", out, err)
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", out)
	}
	return nil
}
