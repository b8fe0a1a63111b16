package models

import (
	"fmt"
	"strings"
)

// MStreamKey identifies one candle series: a symbol priced in a quote
// currency at a resolution.
type MStreamKey struct {
	Symbol     string `json:"symbol"`
	Quote      string `json:"quote"`
	Resolution string `json:"resolution"`
}

// String renders the key as SYMBOL/QUOTE@resolution.
func (k MStreamKey) String() string {
	return fmt.Sprintf("%s/%s@%s", k.Symbol, k.Quote, k.Resolution)
}

// ParseStreamKey is the inverse of String.
func ParseStreamKey(s string) (MStreamKey, error) {
	pair, res, ok := strings.Cut(s, "@")
	if !ok || res == "" {
		return MStreamKey{}, fmt.Errorf("stream key %q: missing resolution", s)
	}
	sym, quote, ok := strings.Cut(pair, "/")
	if !ok || sym == "" || quote == "" {
		return MStreamKey{}, fmt.Errorf("stream key %q: expected SYMBOL/QUOTE", s)
	}
	return MStreamKey{Symbol: sym, Quote: quote, Resolution: res}, nil
}
