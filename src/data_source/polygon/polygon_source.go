package polygon

import (
	"context"
	"fmt"
	"strings"
	"time"

	datasource "level-observer/src/data_source"
	"level-observer/src/helpers"
	"level-observer/src/logger"
	"level-observer/src/models"

	polygon "github.com/polygon-io/client-go/rest"
	pmodels "github.com/polygon-io/client-go/rest/models"
)

// aggBars is the aggregate bar size requested for each resolution.
var aggBars = map[string]struct {
	multiplier int
	timespan   pmodels.Timespan
}{
	"1h": {1, pmodels.Hour},
	"4h": {4, pmodels.Hour},
	"1d": {1, pmodels.Day},
}

// PolygonSource polls Polygon aggregates. Crypto tickers use the X: prefix
// (X:BTCUSD) and trade around the clock; everything else is treated as equity.
type PolygonSource struct {
	*datasource.BaseSource
	Client *polygon.Client
}

// -----------------------------------------------------------------------------

func NewPolygonSource(cfg *models.MConfig, sourceCfg models.MSourceConfig, log *logger.Logger) *PolygonSource {
	s := &PolygonSource{
		BaseSource: datasource.NewBaseSource(cfg, sourceCfg, log.Named("PolygonSource-"+sourceCfg.Name)),
		Client:     polygon.New(sourceCfg.APIKey),
	}
	s.Fetcher = s
	return s
}

// -----------------------------------------------------------------------------

// IsRealTime is true when every tracked ticker is a crypto pair.
func (s *PolygonSource) IsRealTime() bool {
	symbols := s.Symbols()
	if len(symbols) == 0 {
		return false
	}
	for _, sym := range symbols {
		if !strings.HasPrefix(sym, "X:") {
			return false
		}
	}
	return true
}

// -----------------------------------------------------------------------------

// AggsParams builds the aggregate request for query.
func AggsParams(query models.MCandleQuery) (*pmodels.ListAggsParams, error) {
	bar, ok := aggBars[query.Resolution]
	if !ok {
		return nil, helpers.NewValidationError(fmt.Sprintf("polygon has no aggregate for %q", query.Resolution), nil)
	}

	return pmodels.ListAggsParams{
		Ticker:     query.Symbol,
		Multiplier: bar.multiplier,
		Timespan:   bar.timespan,
		From:       pmodels.Millis(time.Unix(query.From, 0)),
		To:         pmodels.Millis(time.Unix(query.To, 0)),
	}.WithOrder(pmodels.Asc).WithAdjusted(true), nil
}

// -----------------------------------------------------------------------------

// FetchCandles walks the aggregate iterator for the query window.
func (s *PolygonSource) FetchCandles(ctx context.Context, query models.MCandleQuery) ([]models.MCandle, error) {
	params, err := AggsParams(query)
	if err != nil {
		return nil, err
	}

	iter := s.Client.ListAggs(ctx, params)
	var candles []models.MCandle
	for iter.Next() {
		candles = append(candles, ConvertAgg(iter.Item()))
	}
	if err := iter.Err(); err != nil {
		return nil, helpers.NewDataSourceError("polygon aggregates "+query.Symbol, err)
	}
	return candles, nil
}

// -----------------------------------------------------------------------------

// ConvertAgg maps one aggregate bar onto a candle.
func ConvertAgg(agg pmodels.Agg) models.MCandle {
	return models.MCandle{
		Timestamp: time.Time(agg.Timestamp).Unix(),
		Open:      agg.Open,
		High:      agg.High,
		Low:       agg.Low,
		Close:     agg.Close,
		Volume:    agg.Volume,
	}
}

// -----------------------------------------------------------------------------

// FetchLatestPrice returns the last trade price of symbol.
func (s *PolygonSource) FetchLatestPrice(ctx context.Context, symbol, _ string) (float64, error) {
	res, err := s.Client.GetLastTrade(ctx, &pmodels.GetLastTradeParams{Ticker: symbol})
	if err != nil {
		return 0, helpers.NewDataSourceError("polygon last trade "+symbol, err)
	}
	if res.Results.Price <= 0 {
		return 0, helpers.NewDataSourceError(fmt.Sprintf("no trade price for %s", symbol), nil)
	}
	return res.Results.Price, nil
}
