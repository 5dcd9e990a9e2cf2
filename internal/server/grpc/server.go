// Package grpc serves the standard gRPC health protocol for the import service.
package grpc

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
)

// ServiceName is the health service name reported next to the overall status.
const ServiceName = "bulkimport"

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ServerWithHealth wraps the gRPC server and its health service.
type ServerWithHealth struct {
	GRPCServer   *grpc.Server
	HealthServer *health.Server

	logger *slog.Logger
}

// NewServer creates a gRPC server with the health service registered and
// marked SERVING.
func NewServer(logger *slog.Logger) *ServerWithHealth {
	if logger == nil {
		logger = slog.Default()
	}

	opts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			recoveryInterceptor(logger),
			loggingInterceptor(logger),
			timeoutInterceptor(10*time.Second),
		),
		grpc.ConnectionTimeout(10 * time.Second),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			MaxConnectionIdle: 15 * time.Minute,
			Time:              5 * time.Minute,
			Timeout:           20 * time.Second,
		}),
	}

	srv := grpc.NewServer(opts...)

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(srv, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	return &ServerWithHealth{
		GRPCServer:   srv,
		HealthServer: healthServer,
		logger:       logger,
	}
}

// SetServing flips both the overall and the named service status.
func (s *ServerWithHealth) SetServing(serving bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		st = healthpb.HealthCheckResponse_SERVING
	}

	s.HealthServer.SetServingStatus("", st)
	s.HealthServer.SetServingStatus(ServiceName, st)
}

// Watch pings dep every interval and mirrors the result into the health
// status until ctx is done.
func (s *ServerWithHealth) Watch(ctx context.Context, dep Pinger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	healthy := true

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		pingCtx, cancel := context.WithTimeout(ctx, interval)
		err := dep.Ping(pingCtx)
		cancel()

		if ctx.Err() != nil {
			return
		}

		switch {
		case err != nil && healthy:
			s.logger.Warn("dependency unhealthy", "error", err)
			s.SetServing(false)
			healthy = false
		case err == nil && !healthy:
			s.logger.Info("dependency healthy again")
			s.SetServing(true)
			healthy = true
		}
	}
}

// Stop marks the service NOT_SERVING and drains connections.
func (s *ServerWithHealth) Stop() {
	s.HealthServer.Shutdown()
	s.GRPCServer.GracefulStop()
}
