package analysis

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"level-observer/src/analysis/core"
	"level-observer/src/models"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	ResistanceColor = "#FF537B"
	SupportColor    = "#31CB9E"
)

// TableOrder selects how Presenter.Table sorts rows.
type TableOrder string

const (
	OrderValue   TableOrder = "value"
	OrderRecency TableOrder = "recency"
)

// ParseTableOrder maps a query value to a TableOrder. Empty means OrderValue.
func ParseTableOrder(s string) (TableOrder, error) {
	switch TableOrder(strings.ToLower(strings.TrimSpace(s))) {
	case "", OrderValue:
		return OrderValue, nil
	case OrderRecency:
		return OrderRecency, nil
	default:
		return "", fmt.Errorf("unknown table order %q", s)
	}
}

// -----------------------------------------------------------------------------

// Presenter turns detected levels into chart annotations and table rows.
// It keeps no per-stream state: callers pass the current price on every tick.
type Presenter struct {
	printer *message.Printer
}

func NewPresenter() *Presenter {
	return &Presenter{printer: message.NewPrinter(language.English)}
}

// -----------------------------------------------------------------------------

// Classify places a level relative to the current price. Equal counts as below.
func Classify(value, currentPrice float64) (models.LevelSide, models.LevelKind) {
	if value > currentPrice {
		return models.SideAbove, models.KindResistance
	}
	return models.SideBelow, models.KindSupport
}

func colorFor(kind models.LevelKind) string {
	if kind == models.KindResistance {
		return ResistanceColor
	}
	return SupportColor
}

// -----------------------------------------------------------------------------

// FormatPrice renders a price the way the trading UI shows token prices:
// thousands separators and 2 decimals above 1000, 6 decimals above 1,
// otherwise 6 significant digits.
func (p *Presenter) FormatPrice(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "-"
	}

	d := decimal.NewFromFloat(v)
	switch {
	case v > 1000:
		return p.printer.Sprintf("%.2f", d.Round(2).InexactFloat64())
	case v > 1:
		return d.StringFixed(6)
	case v == 0:
		return "0.00000"
	}

	// significant digits: 6 minus the digits left of the first non-zero one
	places := 5 - int(math.Floor(math.Log10(math.Abs(v))))
	if places < 0 {
		places = 0
	}
	return d.StringFixed(int32(places))
}

// Recency renders a level timestamp relative to now, e.g. "3 hours ago".
func Recency(ts int64, now time.Time) string {
	return humanize.RelTime(time.Unix(ts, 0), now, "ago", "from now")
}

// -----------------------------------------------------------------------------

// Annotations returns one horizontal line per level, in level order.
func (p *Presenter) Annotations(levels []models.MLevel, currentPrice float64, now time.Time) []models.MChartAnnotation {
	out := make([]models.MChartAnnotation, 0, len(levels))
	for _, l := range levels {
		side, kind := Classify(l.Value, currentPrice)
		out = append(out, models.MChartAnnotation{
			Value:     l.Value,
			Timestamp: l.Timestamp,
			Label:     p.FormatPrice(l.Value),
			Recency:   Recency(l.Timestamp, now),
			Side:      side,
			Kind:      kind,
			Color:     colorFor(kind),
		})
	}
	return out
}

// -----------------------------------------------------------------------------

// Table returns the tabular view. OrderValue sorts by value descending,
// OrderRecency by timestamp newest first.
func (p *Presenter) Table(levels []models.MLevel, currentPrice float64, now time.Time, order TableOrder) []models.MLevelRow {
	rows := make([]models.MLevelRow, 0, len(levels))
	for _, l := range levels {
		side, kind := Classify(l.Value, currentPrice)
		rows = append(rows, models.MLevelRow{
			Value:           l.Value,
			Price:           p.FormatPrice(l.Value),
			Timestamp:       l.Timestamp,
			Recency:         Recency(l.Timestamp, now),
			DistancePercent: core.CalculateChangePercent(l.Value, currentPrice) * 100,
			Side:            side,
			Kind:            kind,
		})
	}

	switch order {
	case OrderRecency:
		sort.SliceStable(rows, func(i, j int) bool {
			return rows[i].Timestamp > rows[j].Timestamp
		})
	default:
		sort.SliceStable(rows, func(i, j int) bool {
			return rows[i].Value > rows[j].Value
		})
	}
	return rows
}
