package health

import (
	"fmt"
	"net"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// GRPCServer serves the standard gRPC health service for orchestrators
// that probe over gRPC.
type GRPCServer struct {
	server *grpc.Server
	health *grpchealth.Server
	port   int
}

// NewGRPCServer creates a gRPC health server that reports NOT_SERVING
// until the first status update.
func NewGRPCServer(port int) *GRPCServer {
	s := &GRPCServer{
		server: grpc.NewServer(),
		health: grpchealth.NewServer(),
		port:   port,
	}
	healthpb.RegisterHealthServer(s.server, s.health)
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// Update maps a system status to a serving status. Degraded still serves.
func (s *GRPCServer) Update(status SystemStatus) {
	serving := healthpb.HealthCheckResponse_SERVING
	if status == StatusCritical {
		serving = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("", serving)
}

// Start listens and serves until Stop.
func (s *GRPCServer) Start() error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return fmt.Errorf("listen grpc health: %w", err)
	}
	return s.server.Serve(lis)
}

// Stop drains in-flight calls.
func (s *GRPCServer) Stop() {
	s.health.Shutdown()
	s.server.GracefulStop()
}
