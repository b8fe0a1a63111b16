package utils

import (
	"fmt"
	"math"
	"time"
)

// -----------------------------------------------------------------------------

// Constants for data retention and memory management.
const (
	DefaultRetentionDays = 7

	// MaxCandlesPerStream bounds each stream's ring buffer.
	MaxCandlesPerStream = 1000
)

// -----------------------------------------------------------------------------

// Resolution describes one supported candle size.
type Resolution struct {
	Name string
	// Seconds is the candle duration.
	Seconds int64
	// WindowSeconds is how far back a series query reaches.
	WindowSeconds int64
}

// resolutions lists the candle sizes the detector serves, with the lookback
// each series is fetched over.
var resolutions = map[string]Resolution{
	"1h": {Name: "1h", Seconds: 3600, WindowSeconds: 1080000},
	"4h": {Name: "4h", Seconds: 14400, WindowSeconds: 4320000},
	"1d": {Name: "1d", Seconds: 86400, WindowSeconds: 12960000},
}

// -----------------------------------------------------------------------------

// LookupResolution returns the resolution called name.
func LookupResolution(name string) (Resolution, error) {
	r, ok := resolutions[name]
	if !ok {
		return Resolution{}, fmt.Errorf("unsupported resolution %q", name)
	}
	return r, nil
}

// -----------------------------------------------------------------------------

// QueryWindow returns the [from, to] range to fetch for a resolution, with to
// rounded down to the minute.
func QueryWindow(name string, now time.Time) (int64, int64, error) {
	r, err := LookupResolution(name)
	if err != nil {
		return 0, 0, err
	}
	to := (now.Unix() / 60) * 60
	return to - r.WindowSeconds, to, nil
}

// -----------------------------------------------------------------------------

// CalculateMaxDataPoints calculates how many candles a stream needs to hold
// its full query window, capped at MaxCandlesPerStream.
func CalculateMaxDataPoints(resolution string) int {
	r, err := LookupResolution(resolution)
	if err != nil {
		return MaxCandlesPerStream
	}
	n := int(math.Ceil(float64(r.WindowSeconds) / float64(r.Seconds)))
	if n > MaxCandlesPerStream {
		return MaxCandlesPerStream
	}
	return n
}
