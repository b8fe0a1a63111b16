package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"level-observer/src/logger"
)

func TestMICForSymbol(t *testing.T) {
	tests := map[string]string{
		"AAPL":     "xnys",
		"VOD.L":    "xlon",
		"7203.T":   "xtks",
		"0700.HK":  "xhkg",
		"BTC-USD":  "",
		"eth-usdt": "",
		"BRK.B":    "xnys",
	}
	for symbol, want := range tests {
		t.Run(symbol, func(t *testing.T) {
			assert.Equal(t, want, MICForSymbol(symbol))
		})
	}
}

func TestFallbackCalendarHours(t *testing.T) {
	tc := &TradingCalendar{Fallback: true, Timezone: time.UTC}

	// 2024-01-10 is a Wednesday, 2024-01-13 a Saturday.
	assert.True(t, tc.IsOpenOnMinute(time.Date(2024, 1, 10, 10, 0, 0, 0, time.UTC)))
	assert.False(t, tc.IsOpenOnMinute(time.Date(2024, 1, 10, 9, 29, 0, 0, time.UTC)))
	assert.False(t, tc.IsOpenOnMinute(time.Date(2024, 1, 10, 16, 0, 0, 0, time.UTC)))
	assert.False(t, tc.IsOpenOnMinute(time.Date(2024, 1, 13, 12, 0, 0, 0, time.UTC)))
}

func TestSchedulerCryptoAlwaysOpen(t *testing.T) {
	ms := NewMarketScheduler([]string{"BTC-USD"}, logger.NewLogger("ERROR", "test"))
	saturday := time.Date(2024, 1, 13, 3, 0, 0, 0, time.UTC)

	assert.True(t, ms.AnyMarketOpen(saturday))
	assert.Equal(t, []string{"BTC-USD"}, ms.OpenSymbols(saturday))

	ms.UpdateSymbols(nil)
	assert.False(t, ms.AnyMarketOpen(saturday))
}
