package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"level-observer/src/logger"
	"level-observer/src/models"
)

func newTestDetector() *LevelDetector {
	return NewLevelDetector(&models.MConfig{}, logger.NewLogger("ERROR", "test"))
}

func dipSeries(start int64) []models.MCandle {
	lows := []float64{10, 10, 10, 9, 8, 9, 10, 10, 10}
	out := make([]models.MCandle, len(lows))
	for i, l := range lows {
		out[i] = models.MCandle{
			Timestamp: start + int64(i)*3600,
			Open:      l + 0.5,
			High:      12,
			Low:       l,
			Close:     l + 1,
		}
	}
	return out
}

func TestDetect(t *testing.T) {
	d := newTestDetector()
	stream := models.MStreamKey{Symbol: "BTC", Quote: "USDT", Resolution: "1h"}
	candles := dipSeries(1_700_000_000)

	s := d.Detect(stream, candles, 0)

	assert.NotEmpty(t, s.ID)
	assert.Equal(t, stream, s.Stream)
	require.Len(t, s.Levels, 1)
	assert.Equal(t, 8.5, s.Levels[0].Value)
	assert.Equal(t, len(candles), s.CandleCount)
	assert.Equal(t, candles[0].Timestamp, s.SeriesFrom)
	assert.Equal(t, candles[len(candles)-1].Timestamp, s.SeriesTo)
	assert.Equal(t, candles[len(candles)-1].Close, s.CurrentPrice)

	live := d.Detect(stream, candles, 42)
	assert.Equal(t, 42.0, live.CurrentPrice)
	assert.NotEqual(t, s.ID, live.ID)

	m := d.Metrics()
	assert.Equal(t, 2, m.StreamsProcessed)
	assert.Equal(t, 2, m.LevelsDetected)
}

func TestDetectEmptySeries(t *testing.T) {
	d := newTestDetector()
	s := d.Detect(models.MStreamKey{Symbol: "ETH", Quote: "BTC", Resolution: "1d"}, nil, 0)

	assert.Empty(t, s.Levels)
	assert.Zero(t, s.SeriesTo)
	assert.Zero(t, s.CurrentPrice)
	assert.Zero(t, s.AverageRange)
}

func TestPublishLastWriteWins(t *testing.T) {
	d := newTestDetector()
	stream := models.MStreamKey{Symbol: "BTC", Quote: "USDT", Resolution: "4h"}

	older := d.Detect(stream, dipSeries(1_700_000_000), 0)
	newer := d.Detect(stream, dipSeries(1_700_036_000), 0)

	assert.True(t, d.Publish(newer))
	assert.False(t, d.Publish(older), "older series must not replace a newer one")

	got, ok := d.Latest(stream)
	require.True(t, ok)
	assert.Equal(t, newer.ID, got.ID)
	assert.Equal(t, 1, d.Metrics().SupersededSnapshots)

	// Same series end replaces.
	again := d.Detect(stream, dipSeries(1_700_036_000), 0)
	assert.True(t, d.Publish(again))
	got, _ = d.Latest(stream)
	assert.Equal(t, again.ID, got.ID)

	_, ok = d.Latest(models.MStreamKey{Symbol: "BTC", Quote: "USDT", Resolution: "1h"})
	assert.False(t, ok)
	assert.Len(t, d.Snapshots(), 1)
}

func TestResolvePrice(t *testing.T) {
	candles := dipSeries(0)
	assert.Equal(t, 3.0, ResolvePrice(candles, 3))
	assert.Equal(t, candles[len(candles)-1].Close, ResolvePrice(candles, -1))
	assert.Zero(t, ResolvePrice(nil, 0))
}
