package utils

import (
	"runtime"
	"runtime/debug"
	"sync"

	"level-observer/src/logger"
	"level-observer/src/models"
)

// -----------------------------------------------------------------------------
// MemoryManager caches the latest candle series of every stream.
// -----------------------------------------------------------------------------

type MemoryManager struct {
	DataStreams map[string]*RingBuffer // keyed by MStreamKey.String()
	MaxMemoryMB int
	Logger      *logger.Logger
	mu          sync.RWMutex
}

// -----------------------------------------------------------------------------

func NewMemoryManager(maxMemoryMB int, log *logger.Logger) *MemoryManager {
	return &MemoryManager{
		DataStreams: make(map[string]*RingBuffer),
		MaxMemoryMB: maxMemoryMB,
		Logger:      log,
	}
}

// -----------------------------------------------------------------------------

// ReplaceSeries makes candles the stream's cached series and returns how many
// of them were absent or different in the previous one. The buffer grows to
// hold the whole series.
func (mm *MemoryManager) ReplaceSeries(stream models.MStreamKey, candles []models.MCandle) int {
	mm.mu.Lock()
	key := stream.String()
	buffer, ok := mm.DataStreams[key]
	if !ok {
		buffer = NewRingBuffer(max(CalculateMaxDataPoints(stream.Resolution), len(candles)))
		mm.DataStreams[key] = buffer
	}

	previous := make(map[int64]models.MCandle, buffer.Size())
	for _, c := range buffer.GetAll() {
		previous[c.Timestamp] = c
	}
	if buffer.Capacity() < len(candles) {
		buffer.Resize(len(candles))
	}
	buffer.Clear()

	changed := 0
	for _, c := range candles {
		if old, seen := previous[c.Timestamp]; !seen || old != c {
			changed++
		}
		buffer.Append(c)
	}
	grown := !ok
	mm.mu.Unlock()

	if grown {
		mm.CheckMemoryLimits()
	}
	return changed
}

// -----------------------------------------------------------------------------

// GetCandles returns the cached series for stream, oldest first.
func (mm *MemoryManager) GetCandles(stream models.MStreamKey) []models.MCandle {
	mm.mu.RLock()
	defer mm.mu.RUnlock()

	buffer, ok := mm.DataStreams[stream.String()]
	if !ok {
		return []models.MCandle{}
	}
	return buffer.GetAll()
}

// -----------------------------------------------------------------------------

// GetLatestCandle returns the newest cached candle for stream.
func (mm *MemoryManager) GetLatestCandle(stream models.MStreamKey) (models.MCandle, bool) {
	mm.mu.RLock()
	defer mm.mu.RUnlock()

	buffer, ok := mm.DataStreams[stream.String()]
	if !ok || buffer.Size() == 0 {
		return models.MCandle{}, false
	}
	return buffer.GetLatest(1)[0], true
}

// -----------------------------------------------------------------------------

// Streams returns the keys of every cached stream.
func (mm *MemoryManager) Streams() []models.MStreamKey {
	mm.mu.RLock()
	defer mm.mu.RUnlock()

	out := make([]models.MStreamKey, 0, len(mm.DataStreams))
	for key := range mm.DataStreams {
		if k, err := models.ParseStreamKey(key); err == nil {
			out = append(out, k)
		}
	}
	return out
}

// -----------------------------------------------------------------------------

// CheckMemoryLimits releases spare buffer capacity when the heap exceeds
// MaxMemoryMB. Cached series are kept whole.
func (mm *MemoryManager) CheckMemoryLimits() {
	currentMemory := mm.GetProcessMemoryMB()
	if currentMemory <= float64(mm.MaxMemoryMB) {
		return
	}

	mm.Logger.Info("Memory usage %.1fMB exceeds limit %dMB. Cleaning up.",
		currentMemory, mm.MaxMemoryMB)

	mm.mu.Lock()
	for _, buffer := range mm.DataStreams {
		if buffer.Size() > 0 && buffer.Capacity() > buffer.Size() {
			buffer.Resize(buffer.Size())
		}
	}
	mm.mu.Unlock()

	runtime.GC()
	debug.FreeOSMemory()
}

// -----------------------------------------------------------------------------

// GetProcessMemoryMB gets current heap usage in MB
func (mm *MemoryManager) GetProcessMemoryMB() float64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return float64(m.HeapAlloc) / 1024 / 1024
}

// -----------------------------------------------------------------------------

// Cleanup clears all data
func (mm *MemoryManager) Cleanup() {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	mm.DataStreams = make(map[string]*RingBuffer)
	runtime.GC()
	debug.FreeOSMemory()
}

// -----------------------------------------------------------------------------

// StreamCount returns number of streams with data
func (mm *MemoryManager) StreamCount() int {
	mm.mu.RLock()
	defer mm.mu.RUnlock()

	return len(mm.DataStreams)
}
