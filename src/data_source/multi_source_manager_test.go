package datasource

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"level-observer/src/interfaces"
	"level-observer/src/logger"
	"level-observer/src/models"
)

// baseOnly adapts BaseSource to ICandleSource for tests.
type baseOnly struct {
	*BaseSource
	*fakeFetcher
}

func newManagedSource(name string, symbols []string) interfaces.ICandleSource {
	f := &fakeFetcher{candles: map[string][]models.MCandle{}}
	b := newFakeSource(name, symbols, f)
	return &baseOnly{BaseSource: b, fakeFetcher: f}
}

func (s *baseOnly) IsRealTime() bool { return true }

func TestMultiSourceManager(t *testing.T) {
	m := NewMultiSourceManager([]interfaces.ICandleSource{
		newManagedSource("yahoo", []string{"AAPL"}),
		newManagedSource("binance", []string{"BTC", "ETH"}),
	}, logger.NewLogger("ERROR", "test"))

	all := m.GetAllSources()
	require.Len(t, all, 2)
	assert.Equal(t, "binance", all[0].Name())

	assert.Error(t, m.StartSource("binance"), "manager not running")

	out := make(chan models.MSeriesUpdate, 10)
	var wg sync.WaitGroup
	require.NoError(t, m.Start(context.Background(), out, &wg))
	assert.Error(t, m.Start(context.Background(), out, &wg))

	require.NoError(t, m.StopSource("binance"))
	require.NoError(t, m.StartSource("binance"))
	assert.Error(t, m.StartSource("nope"))

	require.NoError(t, m.UpdateSymbols("binance", []string{"SOL"}))
	s, err := m.SourceFor("SOL", "USDT")
	require.NoError(t, err)
	assert.Equal(t, "binance", s.Name())
	_, err = m.SourceFor("BTC", "USDT")
	assert.Error(t, err)

	require.NoError(t, m.AddSource(newManagedSource("polygon", []string{"MSFT"})))
	assert.Error(t, m.AddSource(newManagedSource("polygon", nil)))

	require.NoError(t, m.RemoveSource("yahoo"))
	assert.Error(t, m.RemoveSource("yahoo"))

	require.NoError(t, m.Stop())
	wg.Wait()
	require.NoError(t, m.Stop())
}
