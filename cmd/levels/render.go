package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"level-observer/src/analysis"
	"level-observer/src/logger"
	"level-observer/src/models"

	"github.com/gocarina/gocsv"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// cliLogger keeps library logging quiet unless --verbose is set.
func cliLogger(cmd *cobra.Command, name string) *logger.Logger {
	level := "ERROR"
	if v, _ := cmd.Flags().GetBool("verbose"); v {
		level = "DEBUG"
	}
	return logger.NewLogger(level, name)
}

// -----------------------------------------------------------------------------

// readCandles loads a CSV with a timestamp,open,high,low,close[,volume]
// header and returns the rows oldest first.
func readCandles(r io.Reader) ([]models.MCandle, error) {
	var rows []*models.MCandle
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("parse candles: %w", err)
	}

	candles := make([]models.MCandle, 0, len(rows))
	for _, c := range rows {
		if c != nil {
			candles = append(candles, *c)
		}
	}
	sort.SliceStable(candles, func(i, j int) bool { return candles[i].Timestamp < candles[j].Timestamp })
	return candles, nil
}

func readCandlesFile(path string) ([]models.MCandle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readCandles(f)
}

func writeCandlesFile(path string, candles []models.MCandle) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	rows := make([]*models.MCandle, len(candles))
	for i := range candles {
		rows[i] = &candles[i]
	}
	return gocsv.MarshalFile(&rows, f)
}

// -----------------------------------------------------------------------------

// renderLevels prints a one-line summary and the level table.
func renderLevels(w io.Writer, p *analysis.Presenter, snap models.MLevelSnapshot, order analysis.TableOrder, now time.Time) {
	name := snap.Stream.String()
	if snap.Stream.Symbol == "" {
		name = "series"
	}
	fmt.Fprintf(w, "%s: %d levels over %d candles, price %s, average range %s\n",
		name, len(snap.Levels), snap.CandleCount, p.FormatPrice(snap.CurrentPrice), p.FormatPrice(snap.AverageRange))

	if len(snap.Levels) == 0 {
		return
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Level", "Kind", "Side", "Distance", "Formed"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	table.SetAutoFormatHeaders(false)

	for _, row := range p.Table(snap.Levels, snap.CurrentPrice, now, order) {
		table.Append([]string{
			row.Price,
			string(row.Kind),
			string(row.Side),
			fmt.Sprintf("%+.2f%%", row.DistancePercent),
			row.Recency,
		})
	}
	table.Render()
}
