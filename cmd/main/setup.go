package main

import (
	"fmt"

	"level-observer/src/analysis"
	datasource "level-observer/src/data_source"
	"level-observer/src/data_source/registry"
	"level-observer/src/interfaces"
	"level-observer/src/logger"
	"level-observer/src/models"
	"level-observer/src/network"
	"level-observer/src/storage"
)

// -----------------------------------------------------------------------------

// setupDatabase initializes the database connection based on config
func setupDatabase(cfg *models.MConfig, appLogger *logger.Logger) (interfaces.IDatabase, error) {
	var db interfaces.IDatabase
	var err error

	switch cfg.Storage.DBType {
	case "postgres":
		db, err = storage.NewPostgresDB(cfg, logger.NewLogger(cfg.LogLevel, "PostgresDB"))
	default:
		db, err = storage.NewAsyncSQLiteDB(cfg, logger.NewLogger(cfg.LogLevel, "SQLiteDB"))
	}

	if err != nil {
		appLogger.Critical("Failed to init db: %v", err)
		return nil, err
	}
	if err := db.Initialize(); err != nil {
		appLogger.Critical("Failed to migrate db: %v", err)
		return nil, err
	}
	return db, nil
}

// -----------------------------------------------------------------------------

// setupNetwork initializes the network manager
func setupNetwork(cfg *models.MConfig) interfaces.INetworkManager {
	return network.NewAsyncNetworkManager(cfg, logger.NewLogger(cfg.LogLevel, "NetworkManager"))
}

// -----------------------------------------------------------------------------

// -----------------------------------------------------------------------------

// setupDataSources initializes data sources and wraps them in a manager
func setupDataSources(cfg *models.MConfig, appLogger *logger.Logger, netMgr interfaces.INetworkManager) (*datasource.MultiSourceManager, error) {
	var sources []interfaces.ICandleSource
	appLogger.Info("Initializing data sources...")

	sourceLogger := logger.NewLogger(cfg.LogLevel, "DataSource")
	for _, srcCfg := range cfg.DataSource.Sources {
		if len(srcCfg.Symbols) == 0 {
			appLogger.Info("Source %s: No symbols to fetch from provider.", srcCfg.Name)
			continue
		}
		s, err := registry.NewSource(cfg, srcCfg, netMgr, sourceLogger)
		if err != nil {
			appLogger.Warning("Skipping source: %v", err)
			continue
		}
		sources = append(sources, s)
		appLogger.Info("Added source: %s (%s) quoting %s with %d symbols (IsRealTime: %v)",
			srcCfg.Name, srcCfg.Type, srcCfg.Quote, len(srcCfg.Symbols), s.IsRealTime())
	}

	if len(sources) == 0 {
		appLogger.Critical("No valid data sources initialized. Exiting.")
		return nil, fmt.Errorf("no valid data sources")
	}

	appLogger.Info("Initializing MultiSourceManager for %d sources.", len(sources))
	return datasource.NewMultiSourceManager(sources, logger.NewLogger(cfg.LogLevel, "MultiSourceManager")), nil
}

// -----------------------------------------------------------------------------

// setupAnalysis initializes the level detector
func setupAnalysis(cfg *models.MConfig) *analysis.LevelDetector {
	return analysis.NewLevelDetector(cfg, logger.NewLogger(cfg.LogLevel, "LevelDetector"))
}
