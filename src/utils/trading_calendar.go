package utils

import (
	"strings"
	"time"

	"level-observer/src/logger"

	"github.com/scmhub/calendar"
)

// micBySuffix maps Yahoo ticker suffixes to ISO 10383 MIC codes understood by
// scmhub/calendar. Unsuffixed tickers trade on NYSE hours.
var micBySuffix = map[string]string{
	".L":  "xlon",
	".PA": "xpar",
	".DE": "xfra",
	".AS": "xams",
	".BR": "xbru",
	".MI": "xmil",
	".MC": "xmad",
	".ST": "xsto",
	".CO": "xcse",
	".HE": "xhel",
	".VI": "xwbo",
	".SW": "xswx",
	".TO": "xtse",
	".V":  "xtsx",
	".T":  "xtks",
	".HK": "xhkg",
	".AX": "xasx",
	".KS": "xkrx",
	".TW": "xtai",
	".SS": "xshg",
	".SZ": "xshe",
}

// cryptoQuotes are Yahoo pair suffixes (BTC-USD, ETH-EUR) of coins that
// trade around the clock.
var cryptoQuotes = []string{"-USD", "-USDT", "-EUR", "-BTC", "-ETH"}

// TradingCalendar answers whether a symbol's venue is open.
type TradingCalendar struct {
	Calendar   *calendar.Calendar
	Fallback   bool
	AlwaysOpen bool
	Timezone   *time.Location
}

// -----------------------------------------------------------------------------

// MICForSymbol returns the venue code for a ticker, or "" for crypto pairs.
func MICForSymbol(symbol string) string {
	upper := strings.ToUpper(symbol)
	for _, q := range cryptoQuotes {
		if strings.HasSuffix(upper, q) {
			return ""
		}
	}
	if i := strings.LastIndex(upper, "."); i > 0 {
		if mic, ok := micBySuffix[upper[i:]]; ok {
			return mic
		}
	}
	return "xnys"
}

// -----------------------------------------------------------------------------

func GetCalendar(symbol string, log *logger.Logger) *TradingCalendar {
	mic := MICForSymbol(symbol)
	if mic == "" {
		return &TradingCalendar{AlwaysOpen: true, Timezone: time.UTC}
	}

	cal := calendar.GetCalendar(mic)
	if cal == nil {
		cal = calendar.GetCalendar("xnys")
	}

	if cal == nil {
		if log != nil {
			log.Warning("Failed to load calendar for MIC '%s' and fallback 'xnys'. Using Mon-Fri 09:30-16:00 New York.", mic)
		}
		nyLoc, _ := time.LoadLocation("America/New_York")
		if nyLoc == nil {
			nyLoc = time.UTC
		}
		return &TradingCalendar{Fallback: true, Timezone: nyLoc}
	}

	return &TradingCalendar{Calendar: cal, Timezone: cal.Loc}
}

// -----------------------------------------------------------------------------

func (tc *TradingCalendar) IsTradingDay(date time.Time) bool {
	if tc.AlwaysOpen {
		return true
	}
	if tc.Timezone != nil {
		date = date.In(tc.Timezone)
	}

	if tc.Fallback {
		weekday := date.Weekday()
		return weekday != time.Saturday && weekday != time.Sunday
	}
	return tc.Calendar.IsBusinessDay(date)
}

// -----------------------------------------------------------------------------

// IsOpenOnMinute checks if the market is open at a specific minute.
func (tc *TradingCalendar) IsOpenOnMinute(t time.Time) bool {
	if tc.AlwaysOpen {
		return true
	}
	if tc.Timezone != nil {
		t = t.In(tc.Timezone)
	}

	if tc.Fallback {
		if !tc.IsTradingDay(t) {
			return false
		}
		hour, minute := t.Hour(), t.Minute()
		return (hour > 9 || (hour == 9 && minute >= 30)) && hour < 16
	}

	return tc.Calendar.IsOpen(t)
}
