// Package grpclink carries a vehicle.Link over gRPC, so one daemon can own
// the radio or serial link while other processes command and sample it.
//
// Messages are protobuf well-known types, which keeps the service usable
// from grpcurl without a schema.
package grpclink

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "skycourier.link.v1.VehicleLink"

const (
	methodSnapshot = "/" + ServiceName + "/Snapshot"
	methodSetMode  = "/" + ServiceName + "/SetMode"
	methodSetArmed = "/" + ServiceName + "/SetArmed"
	methodTakeoff  = "/" + ServiceName + "/Takeoff"
	methodGoto     = "/" + ServiceName + "/Goto"
)

// LinkServer is the server API of the VehicleLink service.
type LinkServer interface {
	Snapshot(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	SetMode(context.Context, *wrapperspb.StringValue) (*emptypb.Empty, error)
	SetArmed(context.Context, *wrapperspb.BoolValue) (*emptypb.Empty, error)
	Takeoff(context.Context, *wrapperspb.DoubleValue) (*emptypb.Empty, error)
	Goto(context.Context, *structpb.Struct) (*emptypb.Empty, error)
}

// ServiceDesc describes the VehicleLink service for grpc.Server.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LinkServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Snapshot", Handler: unaryHandler(methodSnapshot, LinkServer.Snapshot)},
		{MethodName: "SetMode", Handler: unaryHandler(methodSetMode, LinkServer.SetMode)},
		{MethodName: "SetArmed", Handler: unaryHandler(methodSetArmed, LinkServer.SetArmed)},
		{MethodName: "Takeoff", Handler: unaryHandler(methodTakeoff, LinkServer.Takeoff)},
		{MethodName: "Goto", Handler: unaryHandler(methodGoto, LinkServer.Goto)},
	},
	Metadata: "skycourier/link/v1/link.proto",
}

// RegisterLinkServer registers srv on s.
func RegisterLinkServer(s grpc.ServiceRegistrar, srv LinkServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// unaryHandler builds the method handler protoc-gen-go-grpc would generate
// for call.
func unaryHandler[Req any, Resp any, PReq interface {
	*Req
}](fullMethod string, call func(LinkServer, context.Context, PReq) (Resp, error)) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := PReq(new(Req))
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(LinkServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(LinkServer), ctx, req.(PReq))
		}
		return interceptor(ctx, in, info, handler)
	}
}
