package grpclink

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/autopeer-io/skycourier/internal/vehicle"
)

// server exposes a local vehicle.Link as a LinkServer.
type server struct {
	link vehicle.Link
}

var _ LinkServer = (*server)(nil)

// NewServer serves link. Pass the process's vehicle.Shared so remote
// commands are serialized with local ones.
func NewServer(link vehicle.Link) LinkServer {
	return &server{link: link}
}

func (s *server) Snapshot(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	snap, err := s.link.Snapshot(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return snapshotToStruct(snap), nil
}

func (s *server) SetMode(ctx context.Context, in *wrapperspb.StringValue) (*emptypb.Empty, error) {
	mode := vehicle.Mode(in.GetValue())
	if !mode.Valid() {
		return nil, status.Errorf(codes.InvalidArgument, "unknown mode %q", in.GetValue())
	}
	return reply(s.link.SetMode(ctx, mode))
}

func (s *server) SetArmed(ctx context.Context, in *wrapperspb.BoolValue) (*emptypb.Empty, error) {
	return reply(s.link.SetArmed(ctx, in.GetValue()))
}

func (s *server) Takeoff(ctx context.Context, in *wrapperspb.DoubleValue) (*emptypb.Empty, error) {
	return reply(s.link.Takeoff(ctx, in.GetValue()))
}

func (s *server) Goto(ctx context.Context, in *structpb.Struct) (*emptypb.Empty, error) {
	lat, lon, alt, err := structToPosition(in)
	if err != nil {
		return nil, err
	}
	return reply(s.link.Goto(ctx, lat, lon, alt))
}

func reply(err error) (*emptypb.Empty, error) {
	if err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}
