// Package health exposes the standard gRPC health service so orchestrators
// can tell whether the offload worker is running.
package health

import (
	"context"
	"net"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/dmitrijs2005/mediaoffload/internal/logging"
)

// QueueService is reported SERVING while the queue worker runs.
const QueueService = "offload.queue"

type Server struct {
	address string
	hs      *grpchealth.Server
	logger  logging.Logger
}

func NewServer(address string, l logging.Logger) *Server {
	hs := grpchealth.NewServer()
	hs.SetServingStatus(QueueService, healthpb.HealthCheckResponse_NOT_SERVING)
	return &Server{address: address, hs: hs, logger: l.With("module", "health_server")}
}

// SetServing flips the status reported for service.
func (s *Server) SetServing(service string, serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.hs.SetServingStatus(service, status)
}

// Run blocks until ctx is cancelled or the listener fails.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.serve(ctx, listen)
}

func (s *Server) serve(ctx context.Context, listen net.Listener) error {
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, s.hs)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping health server...")
		s.hs.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting health server", "address", listen.Addr().String())

	return srv.Serve(listen)
}
