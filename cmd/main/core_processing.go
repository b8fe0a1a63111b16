package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"level-observer/src/analysis"
	"level-observer/src/helpers"
	"level-observer/src/interfaces"
	"level-observer/src/logger"
	"level-observer/src/models"
	"level-observer/src/utils"
)

const (
	cleanupInterval = time.Hour
	saveRetries     = 3
)

// -----------------------------------------------------------------------------

// runDataLoop consumes series updates until ctx ends, the channel closes or
// the process is signalled.
func runDataLoop(
	ctx context.Context,
	updatesChan <-chan models.MSeriesUpdate,
	db interfaces.IDatabase,
	detector *analysis.LevelDetector,
	memManager *utils.MemoryManager,
	srv interfaces.IDataExchanger,
	errHandler *helpers.ErrorHandler,
	appLogger *logger.Logger,
) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)

	cleanup := time.NewTicker(cleanupInterval)
	defer cleanup.Stop()

	appLogger.Info("Starting data loop (Push Model)...")

	for {
		select {
		case update, ok := <-updatesChan:
			if !ok {
				appLogger.Info("Data source closed channel.")
				return
			}
			processUpdate(update, db, detector, memManager, srv, errHandler, appLogger)

		case <-cleanup.C:
			errHandler.Handle(db.CleanupOldData(), "cleanup")
			memManager.CheckMemoryLimits()

		case <-quit:
			appLogger.Info("Shutting down...")
			return

		case <-ctx.Done():
			return
		}
	}
}

// -----------------------------------------------------------------------------

// processUpdate detects on the polled series, caches it as the stream's
// current series and fans the result out to storage and clients.
func processUpdate(
	update models.MSeriesUpdate,
	db interfaces.IDatabase,
	detector *analysis.LevelDetector,
	memManager *utils.MemoryManager,
	srv interfaces.IDataExchanger,
	errHandler *helpers.ErrorHandler,
	appLogger *logger.Logger,
) {
	stream := update.Stream
	changed := memManager.ReplaceSeries(stream, update.Candles)
	appLogger.Debug("Received %d candles for %s from %s (%d changed)", len(update.Candles), stream, update.Source, changed)

	snapshot := detector.Detect(stream, update.Candles, update.Price)
	if !detector.Publish(snapshot) {
		appLogger.Debug("Superseded snapshot for %s dropped", stream)
		return
	}

	if err := errHandler.ExecuteWithRetry("save candles", func() error {
		return db.SaveCandles(stream, update.Candles)
	}, saveRetries); err != nil {
		appLogger.Error("%v", err)
	}
	if err := errHandler.ExecuteWithRetry("save level snapshot", func() error {
		return db.SaveLevelSnapshot(snapshot)
	}, saveRetries); err != nil {
		appLogger.Error("%v", err)
	}
	if errHandler.Unhealthy() {
		appLogger.Error("Storage keeps failing (%d errors); serving from memory", errHandler.ErrorCount)
	}

	srv.PublishSnapshot(snapshot)
	if update.Price > 0 {
		srv.PublishPrice(stream, update.Price)
	}
	srv.UpdateMetrics(detector.Metrics())
}
