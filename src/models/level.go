package models

import "time"

// MLevel is a detected support or resistance price.
// Timestamp belongs to the candle that produced it, or the latest candle
// that contributed to it after a merge.
type MLevel struct {
	Timestamp int64   `json:"timestamp"`
	Value     float64 `json:"value"`
}

// -----------------------------------------------------------------------------

// MLevelSnapshot is the output of one detection pass over one series.
type MLevelSnapshot struct {
	ID           string     `json:"id"`
	Stream       MStreamKey `json:"stream"`
	Levels       []MLevel   `json:"levels"`
	AverageRange float64    `json:"average_range"`
	CandleCount  int        `json:"candle_count"`
	CurrentPrice float64    `json:"current_price"`
	SeriesFrom   int64      `json:"series_from"`
	SeriesTo     int64      `json:"series_to"`
	ComputedAt   time.Time  `json:"computed_at"`
}
