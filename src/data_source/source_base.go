package datasource

import (
	"context"
	"fmt"
	"level-observer/src/logger"
	"level-observer/src/models"
	"level-observer/src/utils"
	"sync"
	"sync/atomic"
	"time"
)

// CandleFetcher is the provider-specific half of a source.
type CandleFetcher interface {
	FetchCandles(ctx context.Context, query models.MCandleQuery) ([]models.MCandle, error)
	FetchLatestPrice(ctx context.Context, symbol, quote string) (float64, error)
}

// seriesMark is what a stream looked like on the last push.
type seriesMark struct {
	seriesTo  int64
	lastClose float64
	price     float64
}

// -----------------------------------------------------------------------------

// BaseSource implements the polling lifecycle shared by every provider: one
// goroutine per running source, one MSeriesUpdate per symbol and resolution
// per tick, unchanged series skipped.
type BaseSource struct {
	Config       *models.MConfig
	SourceConfig models.MSourceConfig
	Logger       *logger.Logger
	Fetcher      CandleFetcher
	// Gate reports whether polling should run at t; nil means always.
	Gate func(t time.Time) bool
	// ClosedPause is how long to sleep when Gate says no.
	ClosedPause time.Duration
	Now         func() time.Time

	symbols    atomic.Value // []string
	isRunning  atomic.Bool
	cancelFunc context.CancelFunc
	runID      uint64
	mu         sync.Mutex
}

// -----------------------------------------------------------------------------

func NewBaseSource(cfg *models.MConfig, sourceCfg models.MSourceConfig, log *logger.Logger) *BaseSource {
	b := &BaseSource{
		Config:       cfg,
		SourceConfig: sourceCfg,
		Logger:       log,
		ClosedPause:  60 * time.Minute,
		Now:          time.Now,
	}
	b.symbols.Store(append([]string(nil), sourceCfg.Symbols...))
	return b
}

// -----------------------------------------------------------------------------

func (b *BaseSource) Name() string {
	return b.SourceConfig.Name
}

func (b *BaseSource) Quote() string {
	return b.SourceConfig.Quote
}

// Symbols returns a copy of the monitored symbols.
func (b *BaseSource) Symbols() []string {
	return append([]string(nil), b.symbols.Load().([]string)...)
}

// UpdateSymbols swaps the symbol list; the next tick uses it.
func (b *BaseSource) UpdateSymbols(symbols []string) error {
	b.symbols.Store(append([]string(nil), symbols...))
	b.Logger.Info("Updated symbol list. New count: %d", len(symbols))
	return nil
}

// Running reports whether the poll loop is active.
func (b *BaseSource) Running() bool {
	return b.isRunning.Load()
}

// -----------------------------------------------------------------------------

// Start begins the polling loop. The first poll runs immediately.
func (b *BaseSource) Start(parentCtx context.Context, outputChan chan<- models.MSeriesUpdate, wg *sync.WaitGroup) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.isRunning.Load() {
		return fmt.Errorf("source %s is already running", b.Name())
	}
	if b.Fetcher == nil {
		return fmt.Errorf("source %s has no fetcher", b.Name())
	}

	ctx, cancel := context.WithCancel(parentCtx)
	b.cancelFunc = cancel
	b.runID++
	b.isRunning.Store(true)

	wg.Add(1)
	go b.runLoop(ctx, b.runID, outputChan, wg)
	b.Logger.Info("Started source: %s", b.Name())
	return nil
}

// -----------------------------------------------------------------------------

// Stop signals the run loop to exit
func (b *BaseSource) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.isRunning.Load() {
		return fmt.Errorf("source %s is not running", b.Name())
	}

	if b.cancelFunc != nil {
		b.cancelFunc()
	}
	b.isRunning.Store(false)
	b.Logger.Info("Stopped source: %s", b.Name())
	return nil
}

// -----------------------------------------------------------------------------

func (b *BaseSource) interval() time.Duration {
	secs := b.Config.DataSource.UpdateIntervalSeconds
	if secs <= 0 {
		secs = 60
	}
	return time.Duration(secs) * time.Second
}

// -----------------------------------------------------------------------------

func (b *BaseSource) runLoop(ctx context.Context, id uint64, outputChan chan<- models.MSeriesUpdate, wg *sync.WaitGroup) {
	defer wg.Done()
	defer func() {
		// A restarted loop owns the flag now.
		b.mu.Lock()
		if b.runID == id {
			b.isRunning.Store(false)
		}
		b.mu.Unlock()
	}()

	ticker := time.NewTicker(b.interval())
	defer ticker.Stop()

	// Only this goroutine touches marks.
	marks := make(map[string]seriesMark)

	for {
		if b.Gate != nil && !b.Gate(b.Now()) {
			b.Logger.Info("All markets are closed. Pausing for %v...", b.ClosedPause)
			select {
			case <-time.After(b.ClosedPause):
			case <-ctx.Done():
				return
			}
			continue
		}

		if err := b.poll(ctx, outputChan, marks); err != nil {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// -----------------------------------------------------------------------------

// PollOnce fetches every symbol and resolution once and pushes every series.
// Fetch errors are logged and the stream skipped. Only a cancelled push
// returns an error.
func (b *BaseSource) PollOnce(ctx context.Context, outputChan chan<- models.MSeriesUpdate) error {
	return b.poll(ctx, outputChan, nil)
}

// poll is PollOnce that skips streams whose mark has not moved.
func (b *BaseSource) poll(ctx context.Context, outputChan chan<- models.MSeriesUpdate, marks map[string]seriesMark) error {
	now := b.Now()
	quote := b.Quote()

	for _, symbol := range b.Symbols() {
		price, err := b.Fetcher.FetchLatestPrice(ctx, symbol, quote)
		if err != nil {
			b.Logger.Warning("Price fetch failed for %s/%s: %v", symbol, quote, err)
			price = 0
		}

		for _, res := range b.Config.Resolutions {
			from, to, err := utils.QueryWindow(res, now)
			if err != nil {
				b.Logger.Error("Skipping resolution %s: %v", res, err)
				continue
			}
			query := models.MCandleQuery{Symbol: symbol, Quote: quote, Resolution: res, From: from, To: to}

			candles, err := b.Fetcher.FetchCandles(ctx, query)
			if err != nil {
				b.Logger.Warning("Candle fetch failed for %s: %v", query.Stream(), err)
				continue
			}
			if len(candles) == 0 {
				continue
			}

			stream := query.Stream()
			last := candles[len(candles)-1]
			mark := seriesMark{seriesTo: last.Timestamp, lastClose: last.Close, price: price}
			if marks != nil {
				if prev, ok := marks[stream.String()]; ok && prev == mark {
					continue
				}
				marks[stream.String()] = mark
			}

			update := models.MSeriesUpdate{
				Source:    b.Name(),
				Stream:    stream,
				Candles:   candles,
				Price:     price,
				FetchedAt: now.UTC(),
			}
			select {
			case outputChan <- update:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return nil
}
