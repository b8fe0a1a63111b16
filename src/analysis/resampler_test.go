package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"level-observer/src/models"
)

func TestResampleCandles(t *testing.T) {
	const hour = 3600
	base := int64(1_699_990_000) - int64(1_699_990_000)%(4*hour)

	hourly := []models.MCandle{
		{Timestamp: base, Open: 10, High: 12, Low: 9, Close: 11, Volume: 1},
		{Timestamp: base + hour, Open: 11, High: 15, Low: 10, Close: 14, Volume: 2},
		{Timestamp: base + 2*hour, Open: 14, High: 14, Low: 7, Close: 8, Volume: 3},
		{Timestamp: base + 3*hour, Open: 8, High: 9, Low: 8, Close: 9, Volume: 4},
		{Timestamp: base + 4*hour, Open: 9, High: 10, Low: 9, Close: 10, Volume: 5},
	}

	t.Run("aggregates aligned windows", func(t *testing.T) {
		out := ResampleCandles(hourly, 4*hour)
		require.Len(t, out, 2)

		assert.Equal(t, models.MCandle{Timestamp: base, Open: 10, High: 15, Low: 7, Close: 9, Volume: 10}, out[0])
		assert.Equal(t, models.MCandle{Timestamp: base + 4*hour, Open: 9, High: 10, Low: 9, Close: 10, Volume: 5}, out[1])
	})

	t.Run("unordered input", func(t *testing.T) {
		shuffled := []models.MCandle{hourly[3], hourly[0], hourly[4], hourly[2], hourly[1]}
		assert.Equal(t, ResampleCandles(hourly, 4*hour), ResampleCandles(shuffled, 4*hour))
		assert.Equal(t, base+3*hour, shuffled[0].Timestamp)
	})

	t.Run("identity at native size", func(t *testing.T) {
		assert.Equal(t, hourly, ResampleCandles(hourly, hour))
	})

	t.Run("degenerate input", func(t *testing.T) {
		assert.Empty(t, ResampleCandles(nil, 4*hour))
		assert.Empty(t, ResampleCandles(hourly, 0))
	})
}

func TestCalculateWindowBoundaries(t *testing.T) {
	start, end := CalculateWindowBoundaries(7250, 3600)
	assert.Equal(t, int64(7200), start)
	assert.Equal(t, int64(10800), end)

	start, _ = CalculateWindowBoundaries(-10, 3600)
	assert.Equal(t, int64(-3600), start)
}
