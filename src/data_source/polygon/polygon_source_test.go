package polygon

import (
	"testing"
	"time"

	pmodels "github.com/polygon-io/client-go/rest/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"level-observer/src/logger"
	"level-observer/src/models"
)

func TestAggsParams(t *testing.T) {
	q := models.MCandleQuery{Symbol: "AAPL", Quote: "USD", Resolution: "4h", From: 1_699_000_000, To: 1_700_000_000}

	p, err := AggsParams(q)
	require.NoError(t, err)
	assert.Equal(t, "AAPL", p.Ticker)
	assert.Equal(t, 4, p.Multiplier)
	assert.Equal(t, pmodels.Hour, p.Timespan)
	assert.Equal(t, int64(1_699_000_000), time.Time(p.From).Unix())
	assert.Equal(t, int64(1_700_000_000), time.Time(p.To).Unix())

	_, err = AggsParams(models.MCandleQuery{Resolution: "1w"})
	assert.Error(t, err)
}

func TestConvertAgg(t *testing.T) {
	agg := pmodels.Agg{
		Open: 1, High: 3, Low: 0.5, Close: 2, Volume: 42,
		Timestamp: pmodels.Millis(time.Unix(1_700_000_000, 0)),
	}
	assert.Equal(t, models.MCandle{Timestamp: 1_700_000_000, Open: 1, High: 3, Low: 0.5, Close: 2, Volume: 42}, ConvertAgg(agg))
}

func TestIsRealTime(t *testing.T) {
	cfg := &models.MConfig{}
	log := logger.NewLogger("ERROR", "test")

	crypto := NewPolygonSource(cfg, models.MSourceConfig{Name: "p1", Quote: "USD", Symbols: []string{"X:BTCUSD"}, APIKey: "k"}, log)
	assert.True(t, crypto.IsRealTime())

	mixed := NewPolygonSource(cfg, models.MSourceConfig{Name: "p2", Quote: "USD", Symbols: []string{"X:BTCUSD", "AAPL"}, APIKey: "k"}, log)
	assert.False(t, mixed.IsRealTime())
}
