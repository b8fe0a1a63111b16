package grpc_control

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"level-observer/src/analysis"
	"level-observer/src/config"
	datasource "level-observer/src/data_source"
	"level-observer/src/interfaces"
	"level-observer/src/logger"
	"level-observer/src/models"
	"level-observer/src/utils"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// ControlService implements ControlServer
type ControlService struct {
	Config     *config.Config
	DataSource *datasource.MultiSourceManager
	Detector   *analysis.LevelDetector
	Memory     *utils.MemoryManager
	Database   interfaces.IDatabase // optional
	ConfigPath string
	Logger     *logger.Logger
	Now        func() time.Time
}

// NewControlService creates a new instance of ControlService
func NewControlService(
	cfg *config.Config,
	ds *datasource.MultiSourceManager,
	detector *analysis.LevelDetector,
	memory *utils.MemoryManager,
	db interfaces.IDatabase,
	cfgPath string,
	log *logger.Logger,
) *ControlService {
	return &ControlService{
		Config:     cfg,
		DataSource: ds,
		Detector:   detector,
		Memory:     memory,
		Database:   db,
		ConfigPath: cfgPath,
		Logger:     log,
		Now:        time.Now,
	}
}

// -----------------------------------------------------------------------------

type sourceStatus struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Quote       string   `json:"quote"`
	IsRunning   bool     `json:"is_running"`
	IsRealTime  bool     `json:"is_real_time"`
	SymbolCount int      `json:"symbol_count"`
	Symbols     []string `json:"symbols"`
}

type runner interface {
	Running() bool
}

func (s *ControlService) sourceStatuses() []sourceStatus {
	sources := s.DataSource.GetAllSources()
	out := make([]sourceStatus, 0, len(sources))

	for _, src := range sources {
		symbols := src.Symbols()
		st := sourceStatus{
			Name:        src.Name(),
			Type:        "unknown",
			Quote:       src.Quote(),
			IsRealTime:  src.IsRealTime(),
			SymbolCount: len(symbols),
			Symbols:     symbols,
		}
		if r, ok := src.(runner); ok {
			st.IsRunning = r.Running()
		}
		if srcCfg, err := s.Config.SourceConfig(src.Name()); err == nil {
			st.Type = srcCfg.Type
		}
		out = append(out, st)
	}
	return out
}

// -----------------------------------------------------------------------------

func (s *ControlService) ListSources(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return toStruct(map[string]any{"sources": s.sourceStatuses()})
}

// -----------------------------------------------------------------------------

// UpdateSymbols retargets a running source and persists the list to the
// config file.
func (s *ControlService) UpdateSymbols(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in struct {
		SourceName string   `json:"source_name"`
		Symbols    []string `json:"symbols"`
	}
	if err := fromStruct(req, &in); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "bad request: %v", err)
	}

	if in.SourceName == "" {
		return nil, status.Error(codes.InvalidArgument, "source_name is required")
	}

	symbols := normalizeSymbols(in.Symbols)
	if len(symbols) == 0 {
		return nil, status.Error(codes.InvalidArgument, "symbols list cannot be empty")
	}

	source, err := s.DataSource.GetSource(in.SourceName)
	if err != nil {
		return nil, status.Errorf(codes.NotFound, "source %s not found", in.SourceName)
	}

	if err := source.UpdateSymbols(symbols); err != nil {
		s.Logger.Error("gRPC: Failed to update running source: %v", err)
		return toStruct(map[string]any{
			"success":      false,
			"message":      fmt.Sprintf("Failed to update running source: %v", err),
			"symbol_count": 0,
		})
	}

	if srcCfg, err := s.Config.SourceConfig(in.SourceName); err == nil {
		srcCfg.Symbols = symbols
		if s.ConfigPath != "" {
			if err := s.Config.Save(s.ConfigPath); err != nil {
				s.Logger.Error("gRPC: Failed to persist config: %v", err)
			}
		}
	}

	if s.Database != nil {
		if err := s.Database.RegisterSymbols(in.SourceName, source.Quote(), symbols); err != nil {
			s.Logger.Warning("gRPC: Failed to register symbols for %s: %v", in.SourceName, err)
		}
	}

	s.Logger.Info("gRPC: UpdateSymbols success for %s. Count: %d", in.SourceName, len(symbols))
	return toStruct(map[string]any{
		"success":      true,
		"message":      fmt.Sprintf("Successfully updated %s with %d symbols", in.SourceName, len(symbols)),
		"symbol_count": len(symbols),
	})
}

// -----------------------------------------------------------------------------

func (s *ControlService) StartSource(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	name, err := sourceName(req)
	if err != nil {
		return nil, err
	}

	if err := s.DataSource.StartSource(name); err != nil {
		return sourceControlResponse(false, err.Error(), "stopped")
	}
	return sourceControlResponse(true, fmt.Sprintf("Started source %s", name), "running")
}

// -----------------------------------------------------------------------------

func (s *ControlService) StopSource(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	name, err := sourceName(req)
	if err != nil {
		return nil, err
	}

	if err := s.DataSource.StopSource(name); err != nil {
		return sourceControlResponse(false, err.Error(), "unknown")
	}
	return sourceControlResponse(true, fmt.Sprintf("Stopped source %s", name), "stopped")
}

// -----------------------------------------------------------------------------

type detectRequest struct {
	Symbol     string           `json:"symbol"`
	Quote      string           `json:"quote"`
	Resolution string           `json:"resolution"`
	Price      float64          `json:"price"`
	Order      string           `json:"order"`
	Candles    []models.MCandle `json:"candles"`
}

// DetectLevels runs one detection pass without publishing it. Candles come
// from the request when given, otherwise from the in-memory series of the
// stream. A missing price is fetched from the stream's source and falls back
// to the newest close.
func (s *ControlService) DetectLevels(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in detectRequest
	if err := fromStruct(req, &in); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "bad request: %v", err)
	}

	order, err := analysis.ParseTableOrder(in.Order)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	stream := models.MStreamKey{
		Symbol:     strings.ToUpper(in.Symbol),
		Quote:      strings.ToUpper(in.Quote),
		Resolution: in.Resolution,
	}

	candles := in.Candles
	if len(candles) == 0 {
		if stream.Symbol == "" || stream.Quote == "" || stream.Resolution == "" {
			return nil, status.Error(codes.InvalidArgument, "symbol, quote and resolution are required without candles")
		}
		if s.Memory != nil {
			candles = s.Memory.GetCandles(stream)
		}
		if len(candles) == 0 {
			return nil, status.Errorf(codes.NotFound, "no candles held for %s", stream)
		}
	}

	price := in.Price
	if price <= 0 && stream.Symbol != "" {
		if src, err := s.DataSource.SourceFor(stream.Symbol, stream.Quote); err == nil {
			if p, err := src.FetchLatestPrice(ctx, stream.Symbol, stream.Quote); err == nil {
				price = p
			} else {
				s.Logger.Debug("gRPC: live price for %s unavailable: %v", stream, err)
			}
		}
	}

	snapshot := s.Detector.Detect(stream, candles, price)
	now := s.Now()

	return toStruct(map[string]any{
		"snapshot":    snapshot,
		"annotations": s.Detector.Presenter.Annotations(snapshot.Levels, snapshot.CurrentPrice, now),
		"rows":        s.Detector.Presenter.Table(snapshot.Levels, snapshot.CurrentPrice, now, order),
	})
}

// -----------------------------------------------------------------------------

func (s *ControlService) GetStatus(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	out := map[string]any{
		"name":      s.Config.Name,
		"sources":   s.sourceStatuses(),
		"metrics":   s.Detector.Metrics(),
		"snapshots": len(s.Detector.Snapshots()),
	}
	if s.Memory != nil {
		out["streams_cached"] = s.Memory.StreamCount()
		out["memory_mb"] = s.Memory.GetProcessMemoryMB()
	}
	return toStruct(out)
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func sourceName(req *structpb.Struct) (string, error) {
	name := req.GetFields()["source_name"].GetStringValue()
	if name == "" {
		return "", status.Error(codes.InvalidArgument, "source_name is required")
	}
	return name, nil
}

func sourceControlResponse(ok bool, message, state string) (*structpb.Struct, error) {
	return toStruct(map[string]any{
		"success":       ok,
		"message":       message,
		"current_state": state,
	})
}

func normalizeSymbols(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		sym = strings.TrimSpace(sym)
		if sym == "" {
			continue
		}
		if _, dup := seen[sym]; dup {
			continue
		}
		seen[sym] = struct{}{}
		out = append(out, sym)
	}
	return out
}

// toStruct converts v through its JSON form so struct tags decide field names.
func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	out := new(structpb.Struct)
	if err := protojson.Unmarshal(b, out); err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

func fromStruct(in *structpb.Struct, v any) error {
	if in == nil {
		return nil
	}
	b, err := protojson.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}
