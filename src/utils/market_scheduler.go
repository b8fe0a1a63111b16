package utils

import (
	"level-observer/src/logger"
	"sync"
	"time"
)

// MarketScheduler tells a polling source whether any of its symbols trade now.
type MarketScheduler struct {
	Calendars map[string]*TradingCalendar
	Logger    *logger.Logger
	mu        sync.RWMutex
}

// -----------------------------------------------------------------------------

func NewMarketScheduler(symbols []string, l *logger.Logger) *MarketScheduler {
	ms := &MarketScheduler{
		Calendars: make(map[string]*TradingCalendar),
		Logger:    l,
	}
	ms.MapSymbolsToCalendars(symbols)
	return ms
}

// -----------------------------------------------------------------------------

// MapSymbolsToCalendars replaces the symbol to calendar mapping.
func (ms *MarketScheduler) MapSymbolsToCalendars(symbols []string) {
	calendars := make(map[string]*TradingCalendar, len(symbols))
	for _, symbol := range symbols {
		if cal := GetCalendar(symbol, ms.Logger); cal != nil {
			calendars[symbol] = cal
		}
	}

	ms.mu.Lock()
	ms.Calendars = calendars
	ms.mu.Unlock()

	ms.Logger.Info("MarketScheduler: Mapped %d symbols to calendars.", len(calendars))
}

// UpdateSymbols updates the scheduler with a new list of symbols
func (ms *MarketScheduler) UpdateSymbols(symbols []string) {
	ms.MapSymbolsToCalendars(symbols)
}

// -----------------------------------------------------------------------------

// AnyMarketOpen checks if ANY tracked market is open at t.
func (ms *MarketScheduler) AnyMarketOpen(t time.Time) bool {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	for _, cal := range ms.Calendars {
		if cal.IsOpenOnMinute(t.UTC()) {
			return true
		}
	}
	return false
}

// -----------------------------------------------------------------------------

// OpenSymbols returns the tracked symbols whose market is open at t.
func (ms *MarketScheduler) OpenSymbols(t time.Time) []string {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	var out []string
	for symbol, cal := range ms.Calendars {
		if cal.IsOpenOnMinute(t.UTC()) {
			out = append(out, symbol)
		}
	}
	return out
}
