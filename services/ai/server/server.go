package server

import (
	"context"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health service name reported next to the overall status.
const ServiceName = "signposting.ai"

type Server struct {
	health *health.Server
	log    *slog.Logger
}

func NewServerOptions(log *slog.Logger) *Server {
	s := &Server{
		health: health.NewServer(),
		log:    log,
	}
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

func (s *Server) NewServer() (*grpc.Server, error) {
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, s.health)
	reflection.Register(srv)
	return srv, nil
}

// SetServing flips both the overall and the service status.
func (s *Server) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
	s.log.Info("health status changed", slog.String("status", status.String()))
}

// Check reports the status of ServiceName, as seen by gRPC health clients.
func (s *Server) Check(ctx context.Context) (*healthpb.HealthCheckResponse, error) {
	return s.health.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
}

// Shutdown marks everything NOT_SERVING and ignores later updates.
func (s *Server) Shutdown() {
	s.health.Shutdown()
	s.log.Info("health server shut down")
}
