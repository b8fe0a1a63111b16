package analysis

import (
	"math"
	"sync"
	"time"

	"level-observer/src/analysis/core"
	"level-observer/src/logger"
	"level-observer/src/models"

	"github.com/google/uuid"
)

// LevelDetector runs detection passes and keeps the latest snapshot per
// stream. Detection itself is pure; only Publish touches shared state.
type LevelDetector struct {
	Config    *models.MConfig
	Logger    *logger.Logger
	Presenter *Presenter

	mu      sync.RWMutex
	latest  map[string]models.MLevelSnapshot
	metrics models.MProcessingMetrics
}

// -----------------------------------------------------------------------------

func NewLevelDetector(cfg *models.MConfig, log *logger.Logger) *LevelDetector {
	return &LevelDetector{
		Config:    cfg,
		Logger:    log,
		Presenter: NewPresenter(),
		latest:    make(map[string]models.MLevelSnapshot),
	}
}

// -----------------------------------------------------------------------------

// Detect runs one pass over candles. A non-finite or non-positive
// currentPrice falls back to the close of the newest candle.
func (d *LevelDetector) Detect(stream models.MStreamKey, candles []models.MCandle, currentPrice float64) models.MLevelSnapshot {
	start := time.Now()

	levels := core.AggregateLevels(candles)
	snapshot := models.MLevelSnapshot{
		ID:           uuid.NewString(),
		Stream:       stream,
		Levels:       levels,
		AverageRange: core.AverageRange(candles),
		CandleCount:  len(candles),
		CurrentPrice: ResolvePrice(candles, currentPrice),
		ComputedAt:   time.Now().UTC(),
	}
	if len(candles) > 0 {
		snapshot.SeriesFrom = candles[0].Timestamp
		snapshot.SeriesTo = candles[len(candles)-1].Timestamp
	}

	elapsed := time.Since(start).Seconds()
	d.mu.Lock()
	d.metrics.DetectionTimeSeconds = elapsed
	d.metrics.StreamsProcessed++
	d.metrics.LevelsDetected += len(levels)
	d.mu.Unlock()

	d.Logger.Debug("Detected %d levels for %s over %d candles in %.4fs",
		len(levels), stream, len(candles), elapsed)
	return snapshot
}

// -----------------------------------------------------------------------------

// ResolvePrice returns price when usable, otherwise the newest close.
func ResolvePrice(candles []models.MCandle, price float64) float64 {
	if price > 0 && !math.IsInf(price, 0) {
		return price
	}
	if len(candles) == 0 {
		return 0
	}
	return candles[len(candles)-1].Close
}

// -----------------------------------------------------------------------------

// Publish stores snapshot as its stream's latest unless a snapshot over a
// newer series is already held. It reports whether the snapshot was kept.
func (d *LevelDetector) Publish(snapshot models.MLevelSnapshot) bool {
	key := snapshot.Stream.String()

	d.mu.Lock()
	defer d.mu.Unlock()

	if current, ok := d.latest[key]; ok && snapshot.SeriesTo < current.SeriesTo {
		d.metrics.SupersededSnapshots++
		d.Logger.Warning("Dropping stale snapshot for %s: series ends %d, held %d",
			key, snapshot.SeriesTo, current.SeriesTo)
		return false
	}
	d.latest[key] = snapshot
	return true
}

// -----------------------------------------------------------------------------

// Latest returns the held snapshot for stream.
func (d *LevelDetector) Latest(stream models.MStreamKey) (models.MLevelSnapshot, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s, ok := d.latest[stream.String()]
	return s, ok
}

// Snapshots returns a copy of every held snapshot keyed by stream string.
func (d *LevelDetector) Snapshots() map[string]models.MLevelSnapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string]models.MLevelSnapshot, len(d.latest))
	for k, v := range d.latest {
		out[k] = v
	}
	return out
}

// Restore seeds the held snapshots, e.g. from storage at startup.
func (d *LevelDetector) Restore(snapshots []models.MLevelSnapshot) {
	for _, s := range snapshots {
		d.Publish(s)
	}
}

// Metrics returns the counters accumulated so far.
func (d *LevelDetector) Metrics() models.MProcessingMetrics {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.metrics
}
