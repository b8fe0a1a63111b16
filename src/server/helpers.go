package server

import (
	"net/http"
	"slices"
	"strings"

	"level-observer/src/models"

	"github.com/gin-gonic/gin"
)

// -----------------------------------------------------------------------------

// streamFromQuery reads symbol, quote and resolution. It writes a 400 and
// returns false when any is missing.
func streamFromQuery(c *gin.Context) (models.MStreamKey, bool) {
	stream := models.MStreamKey{
		Symbol:     strings.ToUpper(strings.TrimSpace(c.Query("symbol"))),
		Quote:      strings.ToUpper(strings.TrimSpace(c.Query("quote"))),
		Resolution: strings.TrimSpace(c.Query("resolution")),
	}
	if stream.Symbol == "" || stream.Quote == "" || stream.Resolution == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol, quote and resolution are required"})
		return stream, false
	}
	return stream, true
}

// -----------------------------------------------------------------------------

// subscription is what a client asked to receive. Empty fields match all.
type subscription struct {
	Symbols    []string
	Resolution string
}

// matches accepts a symbol given either bare ("BTC") or as a pair ("BTC/USDT").
func (f subscription) matches(stream models.MStreamKey) bool {
	if f.Resolution != "" && f.Resolution != stream.Resolution {
		return false
	}
	if len(f.Symbols) == 0 {
		return true
	}
	pair := stream.Symbol + "/" + stream.Quote
	return slices.ContainsFunc(f.Symbols, func(s string) bool {
		return strings.EqualFold(s, stream.Symbol) || strings.EqualFold(s, pair)
	})
}

// -----------------------------------------------------------------------------

// filterState copies the streams of state that f accepts.
func filterState(state *models.MLatestData, f subscription) *models.MLatestData {
	out := &models.MLatestData{
		Snapshots:         make(map[string]models.MLevelSnapshot),
		Prices:            make(map[string]float64),
		Timestamp:         state.Timestamp,
		ProcessingMetrics: state.ProcessingMetrics,
	}
	for key, snap := range state.Snapshots {
		if f.matches(snap.Stream) {
			out.Snapshots[key] = snap
		}
	}
	for key, price := range state.Prices {
		stream, err := models.ParseStreamKey(key)
		if err != nil || !f.matches(stream) {
			continue
		}
		out.Prices[key] = price
	}
	return out
}
