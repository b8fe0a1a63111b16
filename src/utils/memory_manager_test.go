package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"level-observer/src/logger"
	"level-observer/src/models"
)

func TestMemoryManagerReplaceSeries(t *testing.T) {
	mm := NewMemoryManager(1<<20, logger.NewLogger("ERROR", "test"))
	stream := models.MStreamKey{Symbol: "BTC", Quote: "USDT", Resolution: "1h"}

	first := []models.MCandle{candleAt(3600, 1), candleAt(7200, 2)}
	assert.Equal(t, 2, mm.ReplaceSeries(stream, first))

	// Overlapping refetch: same bars plus a new one, last bar revised.
	second := []models.MCandle{candleAt(3600, 1), candleAt(7200, 2.5), candleAt(10800, 3)}
	assert.Equal(t, 2, mm.ReplaceSeries(stream, second))

	got := mm.GetCandles(stream)
	require.Len(t, got, 3)
	assert.Equal(t, 2.5, got[1].Close)

	latest, ok := mm.GetLatestCandle(stream)
	require.True(t, ok)
	assert.Equal(t, int64(10800), latest.Timestamp)

	assert.Equal(t, 1, mm.StreamCount())
	assert.Equal(t, []models.MStreamKey{stream}, mm.Streams())
	assert.Equal(t, CalculateMaxDataPoints("1h"), mm.DataStreams[stream.String()].Capacity())

	other := models.MStreamKey{Symbol: "ETH", Quote: "BTC", Resolution: "1d"}
	assert.Empty(t, mm.GetCandles(other))
	_, ok = mm.GetLatestCandle(other)
	assert.False(t, ok)

	mm.Cleanup()
	assert.Zero(t, mm.StreamCount())
}

func TestMemoryManagerReplaceSeriesDropsLeftWindow(t *testing.T) {
	mm := NewMemoryManager(1<<20, logger.NewLogger("ERROR", "test"))
	stream := models.MStreamKey{Symbol: "AAPL", Quote: "USD", Resolution: "1d"}

	mm.ReplaceSeries(stream, []models.MCandle{candleAt(86400, 1), candleAt(2*86400, 2)})
	later := []models.MCandle{candleAt(10*86400, 5), candleAt(11*86400, 6)}
	assert.Equal(t, 2, mm.ReplaceSeries(stream, later))

	assert.Equal(t, later, mm.GetCandles(stream))
}

func TestMemoryManagerReplaceSeriesGrowsBuffer(t *testing.T) {
	mm := NewMemoryManager(1<<20, logger.NewLogger("ERROR", "test"))
	stream := models.MStreamKey{Symbol: "BTC", Quote: "USDT", Resolution: "1d"}

	n := CalculateMaxDataPoints("1d") + 5
	series := make([]models.MCandle, n)
	for i := range series {
		series[i] = candleAt(int64(i+1)*86400, float64(i))
	}

	mm.ReplaceSeries(stream, series)
	assert.Len(t, mm.GetCandles(stream), n)
}

func TestCheckMemoryLimitsKeepsSeries(t *testing.T) {
	mm := NewMemoryManager(0, logger.NewLogger("ERROR", "test"))
	stream := models.MStreamKey{Symbol: "BTC", Quote: "USDT", Resolution: "1h"}
	series := []models.MCandle{candleAt(3600, 1), candleAt(7200, 2), candleAt(10800, 3)}
	mm.ReplaceSeries(stream, series)

	mm.CheckMemoryLimits()

	assert.Equal(t, series, mm.GetCandles(stream))
	assert.Equal(t, len(series), mm.DataStreams[stream.String()].Capacity())
}
