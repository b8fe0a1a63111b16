package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"level-observer/src/analysis"
	"level-observer/src/logger"
	"level-observer/src/models"
)

var (
	testNow   = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	btcStream = models.MStreamKey{Symbol: "BTC", Quote: "USDT", Resolution: "1h"}
	ethStream = models.MStreamKey{Symbol: "ETH", Quote: "BTC", Resolution: "1h"}
)

func newTestServer(t *testing.T) *FastAPIServer {
	t.Helper()
	cfg := &models.MConfig{Name: "test", Host: "127.0.0.1", Port: 0, LogLevel: "ERROR", Resolutions: []string{"1h", "4h", "1d"}}
	cfg.DataSource.Sources = []models.MSourceConfig{{Name: "binance", Type: "binance", Quote: "USDT", Symbols: []string{"BTC"}, APIKey: "secret"}}

	s := NewFastAPIServer(cfg, analysis.NewPresenter(), logger.NewLogger("ERROR", "server-test"))
	s.Now = func() time.Time { return testNow }
	return s
}

func snapshotFor(stream models.MStreamKey, seriesTo int64, price float64, levels ...float64) models.MLevelSnapshot {
	snap := models.MLevelSnapshot{
		ID:           stream.String(),
		Stream:       stream,
		CurrentPrice: price,
		SeriesTo:     seriesTo,
		CandleCount:  50,
	}
	for i, v := range levels {
		snap.Levels = append(snap.Levels, models.MLevel{Timestamp: testNow.Add(-time.Duration(i+1) * time.Hour).Unix(), Value: v})
	}
	return snap
}

func getJSON(t *testing.T, s *FastAPIServer, path string, out any) int {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	if out != nil && rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
	}
	return rec.Code
}

func TestRESTLevels(t *testing.T) {
	s := newTestServer(t)
	s.PublishSnapshot(snapshotFor(btcStream, 1000, 100, 110, 90))

	var body struct {
		Price       float64                   `json:"price"`
		Annotations []models.MChartAnnotation `json:"annotations"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, s, "/api/levels?symbol=btc&quote=usdt&resolution=1h", &body))
	assert.Equal(t, 100.0, body.Price)
	require.Len(t, body.Annotations, 2)
	assert.Equal(t, models.KindResistance, body.Annotations[0].Kind)
	assert.Equal(t, analysis.ResistanceColor, body.Annotations[0].Color)
	assert.Equal(t, models.KindSupport, body.Annotations[1].Kind)

	// A live tick flips the classification.
	s.PublishPrice(btcStream, 120)
	require.Equal(t, http.StatusOK, getJSON(t, s, "/api/levels?symbol=BTC&quote=USDT&resolution=1h", &body))
	assert.Equal(t, 120.0, body.Price)
	for _, a := range body.Annotations {
		assert.Equal(t, models.SideBelow, a.Side)
	}

	assert.Equal(t, http.StatusNotFound, getJSON(t, s, "/api/levels?symbol=ETH&quote=BTC&resolution=1h", nil))
	assert.Equal(t, http.StatusBadRequest, getJSON(t, s, "/api/levels?symbol=BTC", nil))
}

func TestRESTLevelTable(t *testing.T) {
	s := newTestServer(t)
	s.PublishSnapshot(snapshotFor(btcStream, 1000, 100, 90, 110, 105))

	var body struct {
		Rows  []models.MLevelRow `json:"rows"`
		Order string             `json:"order"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, s, "/api/levels/table?symbol=BTC&quote=USDT&resolution=1h", &body))
	assert.Equal(t, "value", body.Order)
	require.Len(t, body.Rows, 3)
	assert.Equal(t, []float64{110, 105, 90}, []float64{body.Rows[0].Value, body.Rows[1].Value, body.Rows[2].Value})

	require.Equal(t, http.StatusOK, getJSON(t, s, "/api/levels/table?symbol=BTC&quote=USDT&resolution=1h&order=recency", &body))
	assert.Equal(t, 90.0, body.Rows[0].Value)

	assert.Equal(t, http.StatusBadRequest, getJSON(t, s, "/api/levels/table?symbol=BTC&quote=USDT&resolution=1h&order=size", nil))
}

func TestRESTStatusEndpoints(t *testing.T) {
	s := newTestServer(t)
	s.PublishSnapshot(snapshotFor(ethStream, 10, 0.05, 0.06))
	s.PublishSnapshot(snapshotFor(btcStream, 10, 100, 90))
	s.UpdateMetrics(models.MProcessingMetrics{StreamsProcessed: 2, LevelsDetected: 2})

	var streams []streamSummary
	require.Equal(t, http.StatusOK, getJSON(t, s, "/api/streams", &streams))
	require.Len(t, streams, 2)
	assert.Equal(t, "BTC/USDT@1h", streams[0].Key)
	assert.Equal(t, 1, streams[1].LevelCount)

	var metrics models.MProcessingMetrics
	require.Equal(t, http.StatusOK, getJSON(t, s, "/api/metrics", &metrics))
	assert.Equal(t, 2, metrics.StreamsProcessed)

	var health map[string]any
	require.Equal(t, http.StatusOK, getJSON(t, s, "/api/health", &health))
	assert.Equal(t, "ok", health["status"])
	assert.EqualValues(t, 2, health["streams"])

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/config", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"resolutions":["1h","4h","1d"]`)
	assert.NotContains(t, rec.Body.String(), "secret")
}

func TestStaleSnapshotIsDropped(t *testing.T) {
	s := newTestServer(t)
	s.PublishSnapshot(snapshotFor(btcStream, 2000, 100, 95))
	s.PublishSnapshot(snapshotFor(btcStream, 1000, 100, 50))

	snap, _, ok := s.lookup(btcStream)
	require.True(t, ok)
	assert.Equal(t, int64(2000), snap.SeriesTo)
	assert.Equal(t, 95.0, snap.Levels[0].Value)
}

func TestPublishPriceIgnoresInvalid(t *testing.T) {
	s := newTestServer(t)
	s.PublishSnapshot(snapshotFor(btcStream, 1, 100, 95))
	s.PublishPrice(btcStream, 0)
	s.PublishPrice(btcStream, -3)

	_, price, ok := s.lookup(btcStream)
	require.True(t, ok)
	assert.Equal(t, 100.0, price)
}

func TestNewerSnapshotPriceBeatsOlderTick(t *testing.T) {
	s := newTestServer(t)
	first := snapshotFor(btcStream, 1000, 100, 95)
	first.ComputedAt = testNow.Add(-time.Hour)
	s.PublishSnapshot(first)
	s.PublishPrice(btcStream, 120)

	_, price, ok := s.lookup(btcStream)
	require.True(t, ok)
	assert.Equal(t, 120.0, price)

	// Detected after the tick without a fresh one of its own.
	second := snapshotFor(btcStream, 2000, 105, 95)
	second.ComputedAt = testNow.Add(time.Minute)
	s.PublishSnapshot(second)

	_, price, ok = s.lookup(btcStream)
	require.True(t, ok)
	assert.Equal(t, 105.0, price)
}

func TestSubscriptionMatches(t *testing.T) {
	assert.True(t, subscription{}.matches(btcStream))
	assert.True(t, subscription{Symbols: []string{"btc"}}.matches(btcStream))
	assert.True(t, subscription{Symbols: []string{"BTC/USDT"}, Resolution: "1h"}.matches(btcStream))
	assert.False(t, subscription{Symbols: []string{"BTC/EUR"}}.matches(btcStream))
	assert.False(t, subscription{Resolution: "1d"}.matches(btcStream))
}

func readMessage(t *testing.T, conn *websocket.Conn) models.MServerMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var msg models.MServerMessage
	require.NoError(t, conn.ReadJSON(&msg))
	require.NoError(t, msg.Type.Validate())
	return msg
}

func TestWebSocketSubscribeAndPush(t *testing.T) {
	s := newTestServer(t)
	s.PublishSnapshot(snapshotFor(btcStream, 10, 100, 90))
	s.PublishSnapshot(snapshotFor(ethStream, 10, 0.05, 0.06))
	// Drain the messages queued before any client existed.
	for len(s.broadcast) > 0 {
		<-s.broadcast
	}

	go s.handleWebsockets()
	t.Cleanup(func() { _ = s.Stop() })

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	initial := readMessage(t, conn)
	assert.Equal(t, models.MessageInitial, initial.Type)
	require.NotNil(t, initial.State)
	assert.Len(t, initial.State.Snapshots, 2)

	require.NoError(t, conn.WriteJSON(models.MSubscribeCommand{Command: "subscribe", Symbols: []string{"ETH"}}))
	filtered := readMessage(t, conn)
	assert.Equal(t, models.MessageInitial, filtered.Type)
	require.NotNil(t, filtered.State)
	assert.Len(t, filtered.State.Snapshots, 1)
	assert.Contains(t, filtered.State.Snapshots, ethStream.String())

	s.PublishPrice(btcStream, 101)
	s.PublishPrice(ethStream, 0.07)

	tick := readMessage(t, conn)
	assert.Equal(t, models.MessagePrice, tick.Type)
	require.NotNil(t, tick.Stream)
	assert.Equal(t, ethStream, *tick.Stream)
	assert.Equal(t, 0.07, tick.Price)
	require.Len(t, tick.Annotations, 1)
	assert.Equal(t, models.SideBelow, tick.Annotations[0].Side)

	s.PublishSnapshot(snapshotFor(ethStream, 20, 0.07, 0.08, 0.05))
	levels := readMessage(t, conn)
	assert.Equal(t, models.MessageLevels, levels.Type)
	require.NotNil(t, levels.Snapshot)
	assert.Equal(t, int64(20), levels.Snapshot.SeriesTo)
	assert.Len(t, levels.Annotations, 2)
}
