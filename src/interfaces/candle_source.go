package interfaces

import (
	"context"
	"level-observer/src/models"
	"sync"
)

// -----------------------------------------------------------------------------
// ICandleSource is a market-data provider of OHLC candle series.
// -----------------------------------------------------------------------------

type ICandleSource interface {

	// Name returns the unique identifier of the source
	Name() string

	// Quote returns the quote currency every symbol of this source is priced in.
	Quote() string

	// -----------------------------------------------------------------------------

	// FetchCandles retrieves the candle series for one query, ascending by time.
	FetchCandles(ctx context.Context, query models.MCandleQuery) ([]models.MCandle, error)

	// -----------------------------------------------------------------------------

	// FetchLatestPrice returns the last traded price of symbol in quote.
	FetchLatestPrice(ctx context.Context, symbol, quote string) (float64, error)

	// -----------------------------------------------------------------------------

	// IsRealTime returns true if the source trades around the clock
	IsRealTime() bool

	// -----------------------------------------------------------------------------

	// UpdateSymbols replaces the list of symbols being monitored
	UpdateSymbols(symbols []string) error

	// Symbols returns a copy of the monitored symbols.
	Symbols() []string

	// -----------------------------------------------------------------------------

	// Start begins polling.
	// ctx: controls the lifecycle (cancellation stops the source)
	// outputChan: receives one update per symbol and resolution on each poll
	// wg: WaitGroup to signal when the source has fully stopped
	Start(ctx context.Context, outputChan chan<- models.MSeriesUpdate, wg *sync.WaitGroup) error

	// -----------------------------------------------------------------------------

	// Stop terminates polling started without a cancellable context.
	Stop() error
}
