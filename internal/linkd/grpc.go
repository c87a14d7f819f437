package linkd

import (
	"context"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	grpcmw "github.com/autopeer-io/skycourier/internal/pkg/middleware/grpc"
	"github.com/autopeer-io/skycourier/internal/vehicle"
	"github.com/autopeer-io/skycourier/internal/vehicle/grpclink"
	"github.com/autopeer-io/skycourier/pkg/log"
	"github.com/autopeer-io/skycourier/pkg/options"
)

// GrpcServer exposes a vehicle link as the VehicleLink service.
type GrpcServer struct {
	server  *grpc.Server
	health  *health.Server
	options *options.GrpcOptions
	addr    chan net.Addr
}

func NewGrpcServer(opts *options.GrpcOptions, link vehicle.Link) *GrpcServer {
	s := grpc.NewServer(grpc.ChainUnaryInterceptor(
		grpcmw.UnaryServerLoggingInterceptor(log.WithName("linkd-grpc")),
	))
	hs := health.NewServer()

	grpclink.RegisterLinkServer(s, grpclink.NewServer(link))
	healthpb.RegisterHealthServer(s, hs)
	reflection.Register(s)

	return &GrpcServer{server: s, health: hs, options: opts, addr: make(chan net.Addr, 1)}
}

// Addr blocks until the listener is bound and returns its address.
func (s *GrpcServer) Addr(ctx context.Context) (net.Addr, error) {
	select {
	case a := <-s.addr:
		s.addr <- a
		return a, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *GrpcServer) Start(ctx context.Context) error {
	lis, err := net.Listen(s.options.Network, s.options.Addr)
	if err != nil {
		return err
	}
	s.addr <- lis.Addr()

	log.Info("Starting gRPC link server", "addr", lis.Addr().String())
	s.health.SetServingStatus(grpclink.ServiceName, healthpb.HealthCheckResponse_SERVING)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.Serve(lis); err != nil {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.health.Shutdown()
		s.server.GracefulStop()
		return nil
	}
}
