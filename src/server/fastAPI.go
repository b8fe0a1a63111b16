package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"level-observer/src/analysis"
	"level-observer/src/logger"
	"level-observer/src/models"

	"github.com/gin-gonic/gin"
)

// -----------------------------------------------------------------------------
// FastAPIServer
// -----------------------------------------------------------------------------

type FastAPIServer struct {
	Config    *models.MConfig
	Logger    *logger.Logger
	Presenter *analysis.Presenter
	Now       func() time.Time
	engine    *gin.Engine
	http      *http.Server

	// WebSocket clients, owned by the hub goroutine
	clients     map[*Client]struct{}
	connections atomic.Int64
	broadcast   chan *models.MServerMessage
	register    chan *Client
	unregister  chan *Client
	subscribe   chan *Client
	done        chan struct{}
	stopOnce    sync.Once

	// Local cache
	latestState *models.MLatestData
	tickTimes   map[string]time.Time
	stateMutex  sync.RWMutex
}

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewFastAPIServer(cfg *models.MConfig, presenter *analysis.Presenter, logger *logger.Logger) *FastAPIServer {
	if cfg.LogLevel != "DEBUG" {
		gin.SetMode(gin.ReleaseMode)
	}
	if presenter == nil {
		presenter = analysis.NewPresenter()
	}

	s := &FastAPIServer{
		Config:    cfg,
		Logger:    logger,
		Presenter: presenter,
		Now:       time.Now,
		engine:    gin.New(),
		clients:   make(map[*Client]struct{}),
		// Buffered so detection never waits on slow sockets
		broadcast:  make(chan *models.MServerMessage, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		subscribe:  make(chan *Client),
		done:       make(chan struct{}),
		latestState: &models.MLatestData{
			Snapshots: make(map[string]models.MLevelSnapshot),
			Prices:    make(map[string]float64),
		},
		tickTimes: make(map[string]time.Time),
	}

	s.engine.Use(gin.Recovery())
	if cfg.LogLevel == "DEBUG" {
		s.engine.Use(gin.Logger())
	}

	// CORS for local dashboards
	s.engine.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if strings.HasPrefix(origin, "http://127.0.0.1:") || strings.HasPrefix(origin, "http://localhost:") {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	s.setupRoutes()
	s.http = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// -----------------------------------------------------------------------------
// Route Setup
// -----------------------------------------------------------------------------

func (s *FastAPIServer) setupRoutes() {
	api := s.engine.Group("/api")
	api.GET("/metrics", s.getMetrics)
	api.GET("/config", s.getConfig)
	api.GET("/health", s.getHealth)
	api.GET("/streams", s.getStreams)
	api.GET("/levels", s.getLevels)
	api.GET("/levels/table", s.getLevelTable)

	s.engine.GET("/ws", s.handleWebSocket)
}

// Handler exposes the router, mainly for tests.
func (s *FastAPIServer) Handler() http.Handler {
	return s.engine
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

// Start runs the hub and blocks serving HTTP until Stop.
func (s *FastAPIServer) Start() error {
	s.Logger.Info("Starting server on %s", s.http.Addr)

	go s.handleWebsockets()

	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		close(s.done)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err = s.http.Shutdown(ctx)
	})
	return err
}

// -----------------------------------------------------------------------------
// Route Handlers
// -----------------------------------------------------------------------------

func (s *FastAPIServer) getMetrics(c *gin.Context) {
	s.stateMutex.RLock()
	defer s.stateMutex.RUnlock()

	c.JSON(http.StatusOK, s.latestState.ProcessingMetrics)
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) getConfig(c *gin.Context) {
	sources := make([]gin.H, 0, len(s.Config.DataSource.Sources))
	for _, src := range s.Config.DataSource.Sources {
		sources = append(sources, gin.H{
			"name":    src.Name,
			"type":    src.Type,
			"quote":   src.Quote,
			"symbols": src.Symbols,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"name":        s.Config.Name,
		"resolutions": s.Config.Resolutions,
		"sources":     sources,
	})
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) getHealth(c *gin.Context) {
	s.stateMutex.RLock()
	timestamp := s.latestState.Timestamp
	streams := len(s.latestState.Snapshots)
	s.stateMutex.RUnlock()

	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"connections":   s.connections.Load(),
		"streams":       streams,
		"latest_update": timestamp,
	})
}

// -----------------------------------------------------------------------------

type streamSummary struct {
	Stream     models.MStreamKey `json:"stream"`
	Key        string            `json:"key"`
	Price      float64           `json:"price"`
	LevelCount int               `json:"level_count"`
	SeriesTo   int64             `json:"series_to"`
}

func (s *FastAPIServer) getStreams(c *gin.Context) {
	s.stateMutex.RLock()
	out := make([]streamSummary, 0, len(s.latestState.Snapshots))
	for key, snap := range s.latestState.Snapshots {
		out = append(out, streamSummary{
			Stream:     snap.Stream,
			Key:        key,
			Price:      s.priceLocked(key, snap),
			LevelCount: len(snap.Levels),
			SeriesTo:   snap.SeriesTo,
		})
	}
	s.stateMutex.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	c.JSON(http.StatusOK, out)
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) getLevels(c *gin.Context) {
	stream, ok := streamFromQuery(c)
	if !ok {
		return
	}

	snap, price, ok := s.lookup(stream)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("no levels for %s", stream)})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"stream":      stream,
		"price":       price,
		"snapshot":    snap,
		"annotations": s.Presenter.Annotations(snap.Levels, price, s.Now()),
	})
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) getLevelTable(c *gin.Context) {
	stream, ok := streamFromQuery(c)
	if !ok {
		return
	}

	order, err := analysis.ParseTableOrder(c.Query("order"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	snap, price, ok := s.lookup(stream)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("no levels for %s", stream)})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"stream":          stream,
		"price":           price,
		"formatted_price": s.Presenter.FormatPrice(price),
		"order":           order,
		"rows":            s.Presenter.Table(snap.Levels, price, s.Now(), order),
	})
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) lookup(stream models.MStreamKey) (models.MLevelSnapshot, float64, bool) {
	key := stream.String()

	s.stateMutex.RLock()
	defer s.stateMutex.RUnlock()

	snap, ok := s.latestState.Snapshots[key]
	if !ok {
		return models.MLevelSnapshot{}, 0, false
	}
	return snap, s.priceLocked(key, snap), true
}

// priceLocked returns the live tick unless the snapshot was computed after
// it. Callers hold stateMutex.
func (s *FastAPIServer) priceLocked(key string, snap models.MLevelSnapshot) float64 {
	p, ok := s.latestState.Prices[key]
	if !ok || s.tickTimes[key].Before(snap.ComputedAt) {
		return snap.CurrentPrice
	}
	return p
}
