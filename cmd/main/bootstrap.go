package main

import (
	"level-observer/src/analysis"
	"level-observer/src/interfaces"
	"level-observer/src/logger"
	"level-observer/src/models"
	"level-observer/src/server"
)

// configuredStreams lists every symbol × resolution of every source.
func configuredStreams(cfg *models.MConfig) []models.MStreamKey {
	var out []models.MStreamKey
	for _, src := range cfg.DataSource.Sources {
		for _, sym := range src.Symbols {
			for _, res := range cfg.Resolutions {
				out = append(out, models.MStreamKey{Symbol: sym, Quote: src.Quote, Resolution: res})
			}
		}
	}
	return out
}

// -----------------------------------------------------------------------------

// performInitialLoad registers the configured symbols and restores the last
// stored snapshot of each stream so clients see levels before the first poll.
func performInitialLoad(
	db interfaces.IDatabase,
	detector *analysis.LevelDetector,
	srv *server.FastAPIServer,
	cfg *models.MConfig,
	appLogger *logger.Logger,
) {
	for _, src := range cfg.DataSource.Sources {
		if err := db.RegisterSymbols(src.Name, src.Quote, src.Symbols); err != nil {
			appLogger.Warning("Failed to register symbols for %s: %v", src.Name, err)
		}
	}

	var restored []models.MLevelSnapshot
	for _, stream := range configuredStreams(cfg) {
		snap, err := db.LoadLatestSnapshot(stream)
		if err != nil {
			appLogger.Warning("Failed to load snapshot for %s: %v", stream, err)
			continue
		}
		if snap != nil {
			restored = append(restored, *snap)
		}
	}

	detector.Restore(restored)
	srv.Restore(detector.Snapshots())
	appLogger.Info("Restored %d level snapshots from storage", len(restored))
}
