package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"level-observer/src/analysis"
	"level-observer/src/config"
	"level-observer/src/data_source/registry"
	"level-observer/src/models"
	"level-observer/src/network"
	"level-observer/src/utils"

	"github.com/spf13/cobra"
)

func newFetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch --source NAME --symbol SYM --resolution RES",
		Short: "Fetch one series from a configured source and detect its levels",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			configPath, _ := flags.GetString("config")
			envFile, _ := flags.GetString("env")
			sourceName, _ := flags.GetString("source")
			symbol, _ := flags.GetString("symbol")
			quote, _ := flags.GetString("quote")
			resolution, _ := flags.GetString("resolution")
			orderFlag, _ := flags.GetString("order")
			savePath, _ := flags.GetString("save")
			timeout, _ := flags.GetDuration("timeout")

			order, err := analysis.ParseTableOrder(orderFlag)
			if err != nil {
				return err
			}

			conf, err := config.NewConfig(configPath, envFile)
			if err != nil {
				return err
			}
			srcCfg, err := conf.SourceConfig(sourceName)
			if err != nil {
				return err
			}
			if quote == "" {
				quote = srcCfg.Quote
			}

			log := cliLogger(cmd, "fetch")
			source, err := registry.NewSource(conf.MConfig, *srcCfg, network.NewAsyncNetworkManager(conf.MConfig, log), log)
			if err != nil {
				return err
			}

			now := time.Now()
			from, to, err := utils.QueryWindow(resolution, now)
			if err != nil {
				return err
			}
			query := models.MCandleQuery{
				Symbol:     strings.ToUpper(symbol),
				Quote:      strings.ToUpper(quote),
				Resolution: resolution,
				From:       from,
				To:         to,
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			candles, err := source.FetchCandles(ctx, query)
			if err != nil {
				return err
			}
			if len(candles) == 0 {
				return fmt.Errorf("%s returned no candles for %s", sourceName, query.Stream())
			}

			price, err := source.FetchLatestPrice(ctx, query.Symbol, query.Quote)
			if err != nil {
				log.Warning("Live price unavailable, using last close: %v", err)
				price = 0
			}

			if savePath != "" {
				if err := writeCandlesFile(savePath, candles); err != nil {
					return err
				}
			}

			detector := analysis.NewLevelDetector(conf.MConfig, log)
			snap := detector.Detect(query.Stream(), candles, price)
			renderLevels(cmd.OutOrStdout(), detector.Presenter, snap, order, now)
			return nil
		},
	}

	cmd.Flags().String("config", "config/default.yaml", "path to config file")
	cmd.Flags().String("env", ".env", "optional dotenv file with credentials")
	cmd.Flags().String("source", "", "configured source name")
	cmd.Flags().String("symbol", "", "base symbol, e.g. BTC or AAPL")
	cmd.Flags().String("quote", "", "quote currency (defaults to the source's)")
	cmd.Flags().String("resolution", "1h", "candle resolution: 1h, 4h or 1d")
	cmd.Flags().String("order", string(analysis.OrderValue), "row order: value or recency")
	cmd.Flags().String("save", "", "also write the fetched candles to this CSV file")
	cmd.Flags().Duration("timeout", 30*time.Second, "overall fetch timeout")
	_ = cmd.MarkFlagRequired("source")
	_ = cmd.MarkFlagRequired("symbol")
	return cmd
}
