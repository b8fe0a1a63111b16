package models

// Side of a level relative to the live price.
type LevelSide string

const (
	SideAbove LevelSide = "above"
	SideBelow LevelSide = "below"
)

// LevelKind is how a level is shown: levels above price act as resistance,
// levels below as support.
type LevelKind string

const (
	KindSupport    LevelKind = "support"
	KindResistance LevelKind = "resistance"
)

// -----------------------------------------------------------------------------

// MChartAnnotation is a horizontal price line drawn on the chart.
type MChartAnnotation struct {
	Value     float64   `json:"value"`
	Timestamp int64     `json:"timestamp"`
	Label     string    `json:"label"`
	Recency   string    `json:"recency"`
	Side      LevelSide `json:"side"`
	Kind      LevelKind `json:"kind"`
	Color     string    `json:"color"`
}

// MLevelRow is one line of the tabular level view.
type MLevelRow struct {
	Value           float64   `json:"value"`
	Price           string    `json:"price"`
	Timestamp       int64     `json:"timestamp"`
	Recency         string    `json:"recency"`
	DistancePercent float64   `json:"distance_percent"`
	Side            LevelSide `json:"side"`
	Kind            LevelKind `json:"kind"`
}
