package binance

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	datasource "level-observer/src/data_source"
	"level-observer/src/helpers"
	"level-observer/src/logger"
	"level-observer/src/models"

	gobinance "github.com/adshao/go-binance/v2"
	"golang.org/x/time/rate"
)

const (
	klineLimit   = 1000
	maxRetries   = 3
	retryBackoff = 100 * time.Millisecond
)

// BinanceSource polls Binance spot klines. Symbols are base assets; the
// exchange pair is base+quote (BTC + USDT = BTCUSDT).
type BinanceSource struct {
	*datasource.BaseSource
	client      *gobinance.Client
	rateLimiter *rate.Limiter
}

// -----------------------------------------------------------------------------

func NewBinanceSource(cfg *models.MConfig, sourceCfg models.MSourceConfig, log *logger.Logger) *BinanceSource {
	timeout := time.Duration(cfg.Network.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := gobinance.NewClient(sourceCfg.APIKey, sourceCfg.SecretKey)
	client.HTTPClient = &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	s := &BinanceSource{
		BaseSource: datasource.NewBaseSource(cfg, sourceCfg, log.Named("BinanceSource-"+sourceCfg.Name)),
		client:     client,
		// 10 requests per second with burst of 20
		rateLimiter: rate.NewLimiter(rate.Limit(10), 20),
	}
	s.Fetcher = s
	return s
}

// SetBaseURL points the client at another REST endpoint (testnet, mirrors).
func (s *BinanceSource) SetBaseURL(url string) {
	s.client.BaseURL = url
}

// -----------------------------------------------------------------------------

// IsRealTime returns true: crypto trades around the clock.
func (s *BinanceSource) IsRealTime() bool {
	return true
}

// -----------------------------------------------------------------------------

// PairSymbol builds the exchange symbol for base priced in quote.
func PairSymbol(base, quote string) string {
	return strings.ToUpper(base + quote)
}

// -----------------------------------------------------------------------------

// FetchCandles pulls klines for the query window; Binance serves 1h, 4h and
// 1d natively.
func (s *BinanceSource) FetchCandles(ctx context.Context, query models.MCandleQuery) ([]models.MCandle, error) {
	pair := PairSymbol(query.Symbol, query.Quote)

	klines, err := helpers.RetryWithBackoff(ctx, s.Logger, "klines "+pair, maxRetries, retryBackoff, func() ([]*gobinance.Kline, error) {
		if err := s.rateLimiter.Wait(ctx); err != nil {
			return nil, err
		}
		return s.client.NewKlinesService().
			Symbol(pair).
			Interval(query.Resolution).
			StartTime(query.From * 1000).
			EndTime(query.To * 1000).
			Limit(klineLimit).
			Do(ctx)
	})
	if err != nil {
		return nil, helpers.NewDataSourceError("binance klines "+pair, err)
	}
	return ConvertKlines(klines)
}

// -----------------------------------------------------------------------------

// FetchLatestPrice returns the ticker price of symbol+quote.
func (s *BinanceSource) FetchLatestPrice(ctx context.Context, symbol, quote string) (float64, error) {
	pair := PairSymbol(symbol, quote)

	prices, err := helpers.RetryWithBackoff(ctx, s.Logger, "price "+pair, maxRetries, retryBackoff, func() ([]*gobinance.SymbolPrice, error) {
		if err := s.rateLimiter.Wait(ctx); err != nil {
			return nil, err
		}
		return s.client.NewListPricesService().Symbol(pair).Do(ctx)
	})
	if err != nil {
		return 0, helpers.NewDataSourceError("binance price "+pair, err)
	}

	for _, p := range prices {
		if p.Symbol == pair {
			return strconv.ParseFloat(p.Price, 64)
		}
	}
	return 0, helpers.NewDataSourceError(fmt.Sprintf("no price for %s", pair), nil)
}

// -----------------------------------------------------------------------------

// ConvertKlines maps string-encoded klines onto candles, open time in seconds.
func ConvertKlines(klines []*gobinance.Kline) ([]models.MCandle, error) {
	out := make([]models.MCandle, 0, len(klines))
	for _, k := range klines {
		var vals [5]float64
		for i, raw := range []string{k.Open, k.High, k.Low, k.Close, k.Volume} {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, helpers.NewValidationError(fmt.Sprintf("kline %d field %d", k.OpenTime, i), err)
			}
			vals[i] = v
		}
		out = append(out, models.MCandle{
			Timestamp: k.OpenTime / 1000,
			Open:      vals[0],
			High:      vals[1],
			Low:       vals[2],
			Close:     vals[3],
			Volume:    vals[4],
		})
	}
	return out, nil
}
