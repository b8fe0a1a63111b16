// Command levels runs support/resistance detection from the command line.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "levels",
		Short:         "Detect support and resistance levels in OHLC candles",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().Bool("verbose", false, "log at DEBUG level")
	root.AddCommand(newDetectCmd(), newFetchCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
