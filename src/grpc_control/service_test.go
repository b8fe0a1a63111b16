package grpc_control

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"level-observer/src/analysis"
	"level-observer/src/config"
	datasource "level-observer/src/data_source"
	"level-observer/src/interfaces"
	"level-observer/src/logger"
	"level-observer/src/models"
	"level-observer/src/utils"
)

type stubSource struct {
	name    string
	quote   string
	price   float64
	mu      sync.Mutex
	symbols []string
}

func (s *stubSource) Name() string  { return s.name }
func (s *stubSource) Quote() string { return s.quote }
func (s *stubSource) FetchCandles(context.Context, models.MCandleQuery) ([]models.MCandle, error) {
	return nil, nil
}
func (s *stubSource) FetchLatestPrice(context.Context, string, string) (float64, error) {
	return s.price, nil
}
func (s *stubSource) IsRealTime() bool { return true }
func (s *stubSource) UpdateSymbols(symbols []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.symbols = append([]string(nil), symbols...)
	return nil
}
func (s *stubSource) Symbols() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.symbols...)
}
func (s *stubSource) Start(context.Context, chan<- models.MSeriesUpdate, *sync.WaitGroup) error {
	return nil
}
func (s *stubSource) Stop() error { return nil }

// dipSeries has exactly one support level at 3.
func dipSeries() []models.MCandle {
	lows := []float64{5, 4, 3, 4, 5, 6, 7}
	out := make([]models.MCandle, len(lows))
	for i, l := range lows {
		out[i] = models.MCandle{Timestamp: int64(i+1) * 3600, Open: l + 0.5, High: l + 1, Low: l, Close: l + 0.5}
	}
	return out
}

type fixture struct {
	service    *ControlService
	client     *ControlClient
	source     *stubSource
	configPath string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logger.NewLogger("ERROR", "grpc-test")

	cfg := &config.Config{MConfig: &models.MConfig{Name: "levels", Resolutions: []string{"1h"}}}
	cfg.DataSource.Sources = []models.MSourceConfig{{Name: "binance", Type: config.SourceBinance, Quote: "USDT", Symbols: []string{"BTC"}}}
	configPath := filepath.Join(t.TempDir(), "config.yaml")

	src := &stubSource{name: "binance", quote: "USDT", price: 10, symbols: []string{"BTC"}}
	msm := datasource.NewMultiSourceManager([]interfaces.ICandleSource{src}, log)
	detector := analysis.NewLevelDetector(cfg.MConfig, log)
	memory := utils.NewMemoryManager(64, log)

	svc := NewControlService(cfg, msm, detector, memory, nil, configPath, log)
	svc.Now = func() time.Time { return time.Unix(8*3600, 0) }

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterControlServer(srv, svc)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return &fixture{service: svc, client: NewControlClient(conn), source: src, configPath: configPath}
}

func TestListSourcesOverGRPC(t *testing.T) {
	f := newFixture(t)

	out, err := f.client.Call(context.Background(), MethodListSources, nil)
	require.NoError(t, err)

	sources := out.AsMap()["sources"].([]any)
	require.Len(t, sources, 1)
	first := sources[0].(map[string]any)
	assert.Equal(t, "binance", first["name"])
	assert.Equal(t, "binance", first["type"])
	assert.Equal(t, "USDT", first["quote"])
	assert.EqualValues(t, 1, first["symbol_count"])
}

func TestUpdateSymbolsPersistsConfig(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	out, err := f.client.Call(ctx, MethodUpdateSymbols, map[string]any{
		"source_name": "binance",
		"symbols":     []any{"ETH", " SOL ", "ETH", ""},
	})
	require.NoError(t, err)
	assert.Equal(t, true, out.AsMap()["success"])
	assert.EqualValues(t, 2, out.AsMap()["symbol_count"])
	assert.Equal(t, []string{"ETH", "SOL"}, f.source.Symbols())

	saved, err := os.ReadFile(f.configPath)
	require.NoError(t, err)
	assert.Contains(t, string(saved), "- ETH")
	assert.Contains(t, string(saved), "- SOL")

	_, err = f.client.Call(ctx, MethodUpdateSymbols, map[string]any{"source_name": "binance"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = f.client.Call(ctx, MethodUpdateSymbols, map[string]any{"source_name": "kraken", "symbols": []any{"BTC"}})
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestStartStopSource(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// The manager has not been started, so starting a source fails softly.
	out, err := f.client.Call(ctx, MethodStartSource, map[string]any{"source_name": "binance"})
	require.NoError(t, err)
	assert.Equal(t, false, out.AsMap()["success"])

	out, err = f.client.Call(ctx, MethodStopSource, map[string]any{"source_name": "binance"})
	require.NoError(t, err)
	assert.Equal(t, "stopped", out.AsMap()["current_state"])

	_, err = f.client.Call(ctx, MethodStopSource, nil)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestDetectLevelsFromRequestCandles(t *testing.T) {
	f := newFixture(t)

	candles := make([]any, 0)
	for _, c := range dipSeries() {
		candles = append(candles, map[string]any{
			"timestamp": c.Timestamp, "open": c.Open, "high": c.High, "low": c.Low, "close": c.Close,
		})
	}

	out, err := f.client.Call(context.Background(), MethodDetectLevels, map[string]any{
		"price":   10.0,
		"candles": candles,
	})
	require.NoError(t, err)

	m := out.AsMap()
	snapshot := m["snapshot"].(map[string]any)
	levels := snapshot["levels"].([]any)
	require.Len(t, levels, 1)
	assert.Equal(t, 3.0, levels[0].(map[string]any)["value"])

	annotations := m["annotations"].([]any)
	require.Len(t, annotations, 1)
	assert.Equal(t, "support", annotations[0].(map[string]any)["kind"])
	assert.Equal(t, analysis.SupportColor, annotations[0].(map[string]any)["color"])

	// On-demand detection does not publish.
	assert.Empty(t, f.service.Detector.Snapshots())
}

func TestDetectLevelsFromMemory(t *testing.T) {
	f := newFixture(t)
	stream := models.MStreamKey{Symbol: "BTC", Quote: "USDT", Resolution: "1h"}
	f.service.Memory.ReplaceSeries(stream, dipSeries())

	out, err := f.service.DetectLevels(context.Background(), mustStruct(t, map[string]any{
		"symbol": "btc", "quote": "usdt", "resolution": "1h",
	}))
	require.NoError(t, err)

	snapshot := out.AsMap()["snapshot"].(map[string]any)
	// The live price comes from the source tracking the stream.
	assert.Equal(t, 10.0, snapshot["current_price"])
	assert.EqualValues(t, 7, snapshot["candle_count"])

	_, err = f.service.DetectLevels(context.Background(), mustStruct(t, map[string]any{
		"symbol": "ETH", "quote": "USDT", "resolution": "1h",
	}))
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = f.service.DetectLevels(context.Background(), mustStruct(t, map[string]any{"symbol": "BTC"}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = f.service.DetectLevels(context.Background(), mustStruct(t, map[string]any{"order": "size"}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestGetStatus(t *testing.T) {
	f := newFixture(t)

	out, err := f.client.Call(context.Background(), MethodGetStatus, nil)
	require.NoError(t, err)

	m := out.AsMap()
	assert.Equal(t, "levels", m["name"])
	assert.Len(t, m["sources"], 1)
	assert.Contains(t, m, "metrics")
	assert.EqualValues(t, 0, m["streams_cached"])
}

func mustStruct(t *testing.T, fields map[string]any) *structpb.Struct {
	t.Helper()
	s, err := toStruct(fields)
	require.NoError(t, err)
	return s
}
