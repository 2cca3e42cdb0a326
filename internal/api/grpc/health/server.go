package health

import (
	"context"
	"errors"
	"fmt"
	"net"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/oshokin/timesync/internal/logger"
)

// Service names reported through the health service.
const (
	// MasterService is the health service name of the master.
	MasterService = "timesync.Master"
	// SlaveService is the health service name of the slave.
	SlaveService = "timesync.Slave"
)

// Server is a gRPC server carrying only the health service.
type Server struct {
	// grpcServer owns the listener while serving.
	grpcServer *grpc.Server
	// health tracks the serving status.
	health *grpchealth.Server
	// service is the name whose status is toggled by SetServing.
	service string
}

// NewServer creates a health server for service. Both service and the overall
// server status start as NOT_SERVING.
func NewServer(service string) *Server {
	hs := grpchealth.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(service, healthpb.HealthCheckResponse_NOT_SERVING)

	grpcServer := grpc.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)

	return &Server{
		grpcServer: grpcServer,
		health:     hs,
		service:    service,
	}
}

// SetServing switches the reported status of the service and the server.
func (s *Server) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}

	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(s.service, status)
}

// ListenAndServe listens on the TCP address and serves until ctx is canceled.
func (s *Server) ListenAndServe(ctx context.Context, address string) error {
	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", address)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", address, err)
	}

	return s.Serve(ctx, lis)
}

// Serve accepts health checks on lis until ctx is canceled.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	logger.InfoKV(ctx, "Health server listening", "listen_address", lis.Addr().String(), "service", s.service)

	// Done channel is closed after GracefulStop finishes so Serve returns
	// only once the server fully stopped.
	done := make(chan struct{})

	go func() {
		<-ctx.Done()
		s.health.Shutdown()
		s.grpcServer.GracefulStop()
		close(done)
	}()

	if err := s.grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve gRPC: %w", err)
	}

	<-done
	logger.Info(ctx, "Health server stopped")

	return nil
}
