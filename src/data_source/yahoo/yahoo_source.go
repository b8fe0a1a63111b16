package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"level-observer/src/analysis"
	datasource "level-observer/src/data_source"
	"level-observer/src/helpers"
	"level-observer/src/interfaces"
	"level-observer/src/logger"
	"sort"
	"strconv"
	"time"

	"level-observer/src/models"
	"level-observer/src/utils"
)

const DefaultChartURL = "https://query1.finance.yahoo.com/v8/finance/chart/"

// chartInterval is the native chart interval fetched for each resolution and
// the window the result is resampled to (0 means use as is).
var chartInterval = map[string]struct {
	interval string
	resample int64
}{
	"1h": {"60m", 0},
	"4h": {"60m", 4 * 3600},
	"1d": {"1d", 0},
}

// YahooFinanceSource polls the Yahoo chart API. Polling pauses while every
// tracked exchange is closed.
type YahooFinanceSource struct {
	*datasource.BaseSource
	Network         interfaces.INetworkManager
	MarketScheduler *utils.MarketScheduler
	ChartURL        string
}

// -----------------------------------------------------------------------------

func NewYahooFinanceSource(cfg *models.MConfig, sourceCfg models.MSourceConfig, netMgr interfaces.INetworkManager, log *logger.Logger) *YahooFinanceSource {
	s := &YahooFinanceSource{
		BaseSource:      datasource.NewBaseSource(cfg, sourceCfg, log.Named("YahooFinanceSource-"+sourceCfg.Name)),
		Network:         netMgr,
		MarketScheduler: utils.NewMarketScheduler(sourceCfg.Symbols, log.Named("MarketScheduler-"+sourceCfg.Name)),
		ChartURL:        DefaultChartURL,
	}
	s.Fetcher = s
	s.Gate = s.MarketScheduler.AnyMarketOpen
	return s
}

// -----------------------------------------------------------------------------

// IsRealTime returns false because Yahoo follows exchange sessions.
func (s *YahooFinanceSource) IsRealTime() bool {
	return false
}

// -----------------------------------------------------------------------------

func (s *YahooFinanceSource) UpdateSymbols(symbols []string) error {
	if err := s.BaseSource.UpdateSymbols(symbols); err != nil {
		return err
	}
	s.MarketScheduler.UpdateSymbols(symbols)
	return nil
}

// -----------------------------------------------------------------------------

// FetchCandles fetches one series. 4h candles are built from 60m bars since
// the chart API has no 4h interval.
func (s *YahooFinanceSource) FetchCandles(ctx context.Context, query models.MCandleQuery) ([]models.MCandle, error) {
	iv, ok := chartInterval[query.Resolution]
	if !ok {
		return nil, helpers.NewValidationError(fmt.Sprintf("yahoo has no interval for %q", query.Resolution), nil)
	}

	params := map[string]string{
		"interval":       iv.interval,
		"period1":        strconv.FormatInt(query.From, 10),
		"period2":        strconv.FormatInt(query.To, 10),
		"includePrePost": "false",
	}
	resp, err := s.fetchChart(ctx, query.Symbol, params)
	if err != nil {
		return nil, err
	}

	candles, err := s.parseCandles(query.Symbol, resp)
	if err != nil {
		return nil, err
	}
	if iv.resample > 0 {
		candles = analysis.ResampleCandles(candles, iv.resample)
	}
	return candles, nil
}

// -----------------------------------------------------------------------------

// FetchLatestPrice returns the chart meta regular market price.
func (s *YahooFinanceSource) FetchLatestPrice(ctx context.Context, symbol, quote string) (float64, error) {
	resp, err := s.fetchChart(ctx, symbol, map[string]string{"interval": "1d", "range": "1d"})
	if err != nil {
		return 0, err
	}
	meta := resp.Chart.Result[0].Meta
	if meta.Currency != "" && quote != "" && meta.Currency != quote {
		s.Logger.Warning("%s is quoted in %s, source expects %s", symbol, meta.Currency, quote)
	}
	if meta.RegularMarketPrice <= 0 {
		return 0, helpers.NewDataSourceError(fmt.Sprintf("no market price for %s", symbol), nil)
	}
	return meta.RegularMarketPrice, nil
}

// -----------------------------------------------------------------------------

type YahooChartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Currency           string  `json:"currency"`
				Symbol             string  `json:"symbol"`
				ExchangeName       string  `json:"exchangeName"`
				RegularMarketTime  int64   `json:"regularMarketTime"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				DataGranularity    string  `json:"dataGranularity"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					High   []*float64 `json:"high"` // null for missing bars
					Low    []*float64 `json:"low"`
					Open   []*float64 `json:"open"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// -----------------------------------------------------------------------------

func (s *YahooFinanceSource) fetchChart(ctx context.Context, symbol string, params map[string]string) (*YahooChartResponse, error) {
	respBytes, err := s.Network.Get(ctx, s.ChartURL+symbol, params)
	if err != nil {
		return nil, fmt.Errorf("network error for %s: %w", symbol, err)
	}

	var resp YahooChartResponse
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		return nil, helpers.NewDataSourceError("json unmarshal failed", err)
	}
	if resp.Chart.Error != nil {
		return nil, helpers.NewDataSourceError(fmt.Sprintf("yahoo api error: %s - %s", resp.Chart.Error.Code, resp.Chart.Error.Description), nil)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, helpers.NewDataSourceError(fmt.Sprintf("no result in response for %s", symbol), nil)
	}
	return &resp, nil
}

// -----------------------------------------------------------------------------

func (s *YahooFinanceSource) parseCandles(symbol string, resp *YahooChartResponse) ([]models.MCandle, error) {
	result := resp.Chart.Result[0]
	if len(result.Timestamp) == 0 {
		return []models.MCandle{}, nil
	}
	if len(result.Indicators.Quote) == 0 {
		return nil, helpers.NewDataSourceError(fmt.Sprintf("no quote data in response for %s", symbol), nil)
	}

	quote := result.Indicators.Quote[0]
	n := len(result.Timestamp)
	if len(quote.Open) != n || len(quote.High) != n || len(quote.Low) != n || len(quote.Close) != n {
		return nil, helpers.NewDataSourceError(fmt.Sprintf("data alignment error for %s", symbol), nil)
	}

	candles := make([]models.MCandle, 0, n)
	skipped := 0
	for i, ts := range result.Timestamp {
		if quote.Open[i] == nil || quote.High[i] == nil || quote.Low[i] == nil || quote.Close[i] == nil {
			skipped++
			continue
		}
		c := models.MCandle{
			Timestamp: ts,
			Open:      *quote.Open[i],
			High:      *quote.High[i],
			Low:       *quote.Low[i],
			Close:     *quote.Close[i],
		}
		if i < len(quote.Volume) && quote.Volume[i] != nil {
			c.Volume = *quote.Volume[i]
		}
		if c.Close <= 0 {
			skipped++
			continue
		}
		candles = append(candles, c)
	}

	sort.Slice(candles, func(i, j int) bool {
		return candles[i].Timestamp < candles[j].Timestamp
	})

	if skipped > 0 {
		s.Logger.Debug("Skipped %d incomplete bars for %s", skipped, symbol)
	}
	if len(candles) > 0 {
		s.Logger.Debug("Fetched %s: %d candles [%s -> %s]", symbol, len(candles),
			time.Unix(candles[0].Timestamp, 0).UTC().Format(time.RFC3339),
			time.Unix(candles[len(candles)-1].Timestamp, 0).UTC().Format(time.RFC3339))
	}
	return candles, nil
}
