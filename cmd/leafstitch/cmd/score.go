package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/leafstitch/internal/guide"
	"github.com/MeKo-Tech/leafstitch/internal/utils"
)

var scoreCmd = &cobra.Command{
	Use:   "score [flags] previous current",
	Short: "Score the overlap between two consecutive captures",
	Long: `Compare the right edge of the previous capture with the left edge of
the current one and report a 0-100 similarity score. Capture apps poll this
while the operator positions the camera; scores near 100 indicate the new
frame lines up with the previous one.

With a single argument the score is the neutral 100, matching the first
capture of a session.

Examples:
  leafstitch score prev_edge.png current_edge.png
  leafstitch score --format json prev.jpg next.jpg`,
	Args: cobra.RangeArgs(1, 2),
	PreRun: func(cmd *cobra.Command, args []string) {
		_ = viper.BindPFlag("output.format", cmd.Flags().Lookup("format"))
	},
	RunE: runScore,
}

func init() {
	rootCmd.AddCommand(scoreCmd)

	scoreCmd.Flags().String("format", "", "output format (text, json)")
}

func runScore(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	score := guide.NeutralScore
	if len(args) == 2 {
		previous, err := utils.LoadSegment(args[0])
		if err != nil {
			return fmt.Errorf("failed to load previous edge: %w", err)
		}
		current, err := utils.LoadSegment(args[1])
		if err != nil {
			return fmt.Errorf("failed to load current edge: %w", err)
		}
		score = guide.Score(previous, current)
	}

	if cfg.Output.Format == "json" {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]int{"score": score})
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Overlap score: %d/100\n", score)
	return nil
}
