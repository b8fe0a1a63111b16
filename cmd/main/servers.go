package main

import (
	"fmt"
	"net"

	"level-observer/src/config"
	pb "level-observer/src/grpc_control"
	"level-observer/src/interfaces"
	"level-observer/src/logger"

	"google.golang.org/grpc"
)

// -----------------------------------------------------------------------------

// startServers launches the HTTP/WS server and the gRPC control server. The
// returned gRPC server is nil when it could not listen.
func startServers(
	srv interfaces.IDataExchanger,
	control *pb.ControlService,
	cfg *config.Config,
	appLogger *logger.Logger,
) *grpc.Server {

	go func() {
		if err := srv.Start(); err != nil {
			appLogger.Error("Server failed: %v", err)
		}
	}()

	port := cfg.GrpcPort
	if port == 0 {
		port = 50051
	}
	addr := fmt.Sprintf("%s:%d", cfg.GrpcHost, port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		appLogger.Critical("failed to listen for gRPC: %v", err)
		return nil
	}

	grpcServer := grpc.NewServer()
	pb.RegisterControlServer(grpcServer, control)

	go func() {
		appLogger.Info("Starting gRPC Control Server on %s", addr)
		if err := grpcServer.Serve(lis); err != nil {
			appLogger.Critical("failed to serve gRPC: %v", err)
		}
	}()
	return grpcServer
}
