package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sync"

	"level-observer/src/config"
	pb "level-observer/src/grpc_control"
	"level-observer/src/helpers"
	"level-observer/src/logger"
	"level-observer/src/models"
	"level-observer/src/server"
	"level-observer/src/utils"
)

// -----------------------------------------------------------------------------

func main() {
	configPath := flag.String("config", "config/default.yaml", "path to config file")
	envFile := flag.String("env", ".env", "optional dotenv file with credentials")
	flag.Parse()

	conf, err := config.NewConfig(*configPath, *envFile)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	appLogger := logger.NewLogger(conf.LogLevel, conf.Name)

	// 1. Storage
	db, err := setupDatabase(conf.MConfig, appLogger)
	if err != nil {
		os.Exit(1)
	}
	defer db.Close()

	// 2. Network & sources
	networkManager := setupNetwork(conf.MConfig)
	multiSource, err := setupDataSources(conf.MConfig, appLogger, networkManager)
	if err != nil {
		os.Exit(1)
	}

	// 3. Detection & presentation
	detector := setupAnalysis(conf.MConfig)
	srv := server.NewFastAPIServer(conf.MConfig, detector.Presenter, logger.NewLogger(conf.LogLevel, "Server"))

	// 4. Memory Manager
	memLimit := helpers.GetRecommendedMemoryLimit(appLogger)
	memManager := utils.NewMemoryManager(memLimit, logger.NewLogger(conf.LogLevel, "MemoryManager"))

	// 5. Restore stored levels
	performInitialLoad(db, detector, srv, conf.MConfig, appLogger)

	// 6. Servers
	control := pb.NewControlService(conf, multiSource, detector, memManager, db, *configPath, logger.NewLogger(conf.LogLevel, "ControlService"))
	grpcServer := startServers(srv, control, conf, appLogger)

	// 7. Sources push into the data loop
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	updatesChan := make(chan models.MSeriesUpdate, 256)

	if err := multiSource.Start(ctx, updatesChan, &wg); err != nil {
		appLogger.Critical("Failed to start data sources: %v", err)
		cancel()
		os.Exit(1)
	}

	runDataLoop(ctx, updatesChan, db, detector, memManager, srv, helpers.NewErrorHandler(appLogger), appLogger)

	// 8. Shutdown
	cancel()
	multiSource.Stop()
	wg.Wait()
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
	if err := srv.Stop(); err != nil {
		appLogger.Error("Server shutdown: %v", err)
	}
	appLogger.Info("Stopped.")
}
