package models

import "time"

// MCandle is one OHLC bar. Timestamp is the bar open in Unix seconds.
type MCandle struct {
	Timestamp int64   `json:"timestamp" csv:"timestamp"`
	Open      float64 `json:"open" csv:"open"`
	High      float64 `json:"high" csv:"high"`
	Low       float64 `json:"low" csv:"low"`
	Close     float64 `json:"close" csv:"close"`
	Volume    float64 `json:"volume" csv:"volume"`
}

// -----------------------------------------------------------------------------

// MCandleQuery is the fetch key handed to a candle source.
type MCandleQuery struct {
	Symbol     string `json:"symbol"`
	Quote      string `json:"quote"`
	Resolution string `json:"resolution"`
	From       int64  `json:"from"`
	To         int64  `json:"to"`
}

// Stream returns the stream the query feeds.
func (q MCandleQuery) Stream() MStreamKey {
	return MStreamKey{Symbol: q.Symbol, Quote: q.Quote, Resolution: q.Resolution}
}

// -----------------------------------------------------------------------------

// MSeriesUpdate is what a source pushes for one stream on each poll.
// Candles is the full series snapshot, not a delta.
type MSeriesUpdate struct {
	Source    string     `json:"source"`
	Stream    MStreamKey `json:"stream"`
	Candles   []MCandle  `json:"candles"`
	Price     float64    `json:"price"`
	FetchedAt time.Time  `json:"fetched_at"`
}
