package datasource

import (
	"context"
	"fmt"
	"level-observer/src/interfaces"
	"level-observer/src/logger"
	"level-observer/src/models"
	"sort"
	"sync"
)

// MultiSourceManager fans several candle sources into one update channel and
// lets the control plane start, stop and retarget them by name.
type MultiSourceManager struct {
	Sources    map[string]interfaces.ICandleSource
	Logger     *logger.Logger
	mu         sync.RWMutex
	outputChan chan<- models.MSeriesUpdate // Send-only, managed by parent
	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         *sync.WaitGroup // Shared with the caller of Start
}

// -----------------------------------------------------------------------------

func NewMultiSourceManager(sources []interfaces.ICandleSource, log *logger.Logger) *MultiSourceManager {
	m := &MultiSourceManager{
		Sources: make(map[string]interfaces.ICandleSource),
		Logger:  log,
	}

	for _, s := range sources {
		m.Sources[s.Name()] = s
	}

	return m
}

// -----------------------------------------------------------------------------

// AddSource adds a new source and starts it if the manager is running
func (m *MultiSourceManager) AddSource(source interfaces.ICandleSource) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := source.Name()
	if _, exists := m.Sources[name]; exists {
		return fmt.Errorf("source %s already exists", name)
	}

	m.Sources[name] = source
	m.Logger.Info("Added source: %s", name)

	if m.outputChan != nil && m.ctx != nil {
		if err := source.Start(m.ctx, m.outputChan, m.wg); err != nil {
			return fmt.Errorf("failed to start source %s: %w", name, err)
		}
	}

	return nil
}

// -----------------------------------------------------------------------------

// RemoveSource stops and removes a source
func (m *MultiSourceManager) RemoveSource(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	source, exists := m.Sources[name]
	if !exists {
		return fmt.Errorf("source %s not found", name)
	}

	if err := source.Stop(); err != nil {
		m.Logger.Debug("Source %s was not running: %v", name, err)
	}

	delete(m.Sources, name)
	m.Logger.Info("Removed source: %s", name)
	return nil
}

// -----------------------------------------------------------------------------

// GetSource retrieves a source by name
func (m *MultiSourceManager) GetSource(name string) (interfaces.ICandleSource, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	source, exists := m.Sources[name]
	if !exists {
		return nil, fmt.Errorf("source %s not found", name)
	}
	return source, nil
}

// -----------------------------------------------------------------------------

// GetAllSources returns every source sorted by name
func (m *MultiSourceManager) GetAllSources() []interfaces.ICandleSource {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := make([]interfaces.ICandleSource, 0, len(m.Sources))
	for _, s := range m.Sources {
		list = append(list, s)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name() < list[j].Name() })
	return list
}

// -----------------------------------------------------------------------------

// Start starts all sources
func (m *MultiSourceManager) Start(parentCtx context.Context, outputChan chan<- models.MSeriesUpdate, wg *sync.WaitGroup) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ctx != nil {
		return fmt.Errorf("MultiSourceManager is already running")
	}

	ctx, cancel := context.WithCancel(parentCtx)
	m.ctx = ctx
	m.cancelFunc = cancel
	m.outputChan = outputChan
	m.wg = wg

	for _, src := range m.Sources {
		if err := src.Start(m.ctx, m.outputChan, m.wg); err != nil {
			m.Logger.Error("Failed to start source %s: %v", src.Name(), err)
			return err
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

// Stop stops all sources gracefully by cancelling the internal context
func (m *MultiSourceManager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ctx == nil {
		return nil
	}

	m.Logger.Info("Stopping MultiSourceManager...")
	m.cancelFunc()
	m.cancelFunc = nil
	m.ctx = nil
	m.outputChan = nil
	m.Logger.Info("MultiSourceManager Stopped.")
	return nil
}

// -----------------------------------------------------------------------------

// StartSource starts a specific source by name
func (m *MultiSourceManager) StartSource(name string) error {
	m.mu.RLock()
	source, exists := m.Sources[name]
	ctx := m.ctx
	outChan := m.outputChan
	wg := m.wg
	m.mu.RUnlock()

	if !exists {
		return fmt.Errorf("source %s not found", name)
	}
	if outChan == nil || ctx == nil {
		return fmt.Errorf("MultiSourceManager is not running")
	}

	return source.Start(ctx, outChan, wg)
}

// -----------------------------------------------------------------------------

// StopSource stops a specific source by name
func (m *MultiSourceManager) StopSource(name string) error {
	source, err := m.GetSource(name)
	if err != nil {
		return err
	}
	return source.Stop()
}

// -----------------------------------------------------------------------------

// UpdateSymbols retargets one source.
func (m *MultiSourceManager) UpdateSymbols(name string, symbols []string) error {
	source, err := m.GetSource(name)
	if err != nil {
		return err
	}
	return source.UpdateSymbols(symbols)
}

// -----------------------------------------------------------------------------

// SourceFor returns the first source quoting quote that tracks symbol.
func (m *MultiSourceManager) SourceFor(symbol, quote string) (interfaces.ICandleSource, error) {
	for _, s := range m.GetAllSources() {
		if s.Quote() != quote {
			continue
		}
		for _, sym := range s.Symbols() {
			if sym == symbol {
				return s, nil
			}
		}
	}
	return nil, fmt.Errorf("no source tracks %s/%s", symbol, quote)
}

// -----------------------------------------------------------------------------

// Name returns "MultiSourceManager"
func (m *MultiSourceManager) Name() string {
	return "MultiSourceManager"
}
