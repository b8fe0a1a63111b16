package main

import (
	"fmt"
	"time"

	"level-observer/src/analysis"
	"level-observer/src/models"

	"github.com/spf13/cobra"
)

func newDetectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "detect --csv FILE",
		Short: "Detect levels in a candle CSV file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("csv")
			orderFlag, _ := cmd.Flags().GetString("order")
			price, _ := cmd.Flags().GetFloat64("price")

			order, err := analysis.ParseTableOrder(orderFlag)
			if err != nil {
				return err
			}

			candles, err := readCandlesFile(path)
			if err != nil {
				return err
			}
			if len(candles) == 0 {
				return fmt.Errorf("%s has no candles", path)
			}

			detector := analysis.NewLevelDetector(&models.MConfig{}, cliLogger(cmd, "detect"))
			snap := detector.Detect(models.MStreamKey{}, candles, price)
			renderLevels(cmd.OutOrStdout(), detector.Presenter, snap, order, time.Now())
			return nil
		},
	}

	cmd.Flags().String("csv", "", "candle CSV with timestamp,open,high,low,close columns")
	cmd.Flags().String("order", string(analysis.OrderValue), "row order: value or recency")
	cmd.Flags().Float64("price", 0, "current price (defaults to the last close)")
	_ = cmd.MarkFlagRequired("csv")
	return cmd
}
