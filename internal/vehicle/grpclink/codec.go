package grpclink

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/autopeer-io/skycourier/internal/vehicle"
)

// Field names shared by the Snapshot and Goto structs. They match the
// telemetry frame keys.
const (
	fieldLat     = "lat"
	fieldLon     = "lon"
	fieldAlt     = "alt"
	fieldArmed   = "armed"
	fieldMode    = "mode"
	fieldArmable = "armable"
)

func snapshotToStruct(s vehicle.Snapshot) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldLat:     structpb.NewNumberValue(s.Latitude),
		fieldLon:     structpb.NewNumberValue(s.Longitude),
		fieldAlt:     structpb.NewNumberValue(s.Altitude),
		fieldArmed:   structpb.NewBoolValue(s.Armed),
		fieldMode:    structpb.NewStringValue(string(s.Mode)),
		fieldArmable: structpb.NewBoolValue(s.Armable),
	}}
}

func structToSnapshot(st *structpb.Struct) (vehicle.Snapshot, error) {
	f := st.GetFields()
	for _, k := range []string{fieldLat, fieldLon, fieldAlt, fieldArmed, fieldMode, fieldArmable} {
		if _, ok := f[k]; !ok {
			return vehicle.Snapshot{}, fmt.Errorf("%w: snapshot is missing %q", vehicle.ErrCommunication, k)
		}
	}
	return vehicle.Snapshot{
		Latitude:  f[fieldLat].GetNumberValue(),
		Longitude: f[fieldLon].GetNumberValue(),
		Altitude:  f[fieldAlt].GetNumberValue(),
		Armed:     f[fieldArmed].GetBoolValue(),
		Mode:      vehicle.Mode(f[fieldMode].GetStringValue()),
		Armable:   f[fieldArmable].GetBoolValue(),
	}, nil
}

func positionToStruct(lat, lon, alt float64) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldLat: structpb.NewNumberValue(lat),
		fieldLon: structpb.NewNumberValue(lon),
		fieldAlt: structpb.NewNumberValue(alt),
	}}
}

func structToPosition(st *structpb.Struct) (lat, lon, alt float64, err error) {
	f := st.GetFields()
	for _, k := range []string{fieldLat, fieldLon, fieldAlt} {
		if _, ok := f[k]; !ok {
			return 0, 0, 0, status.Errorf(codes.InvalidArgument, "goto is missing %q", k)
		}
	}
	return f[fieldLat].GetNumberValue(), f[fieldLon].GetNumberValue(), f[fieldAlt].GetNumberValue(), nil
}

// toStatus maps a link error onto the gRPC status the client will decode
// with fromStatus.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	code := codes.Internal
	switch {
	case errors.Is(err, vehicle.ErrRejected):
		code = codes.FailedPrecondition
	case errors.Is(err, vehicle.ErrTimeout):
		code = codes.DeadlineExceeded
	case errors.Is(err, vehicle.ErrClosed):
		code = codes.Aborted
	case errors.Is(err, vehicle.ErrConnection), errors.Is(err, vehicle.ErrCommunication):
		code = codes.Unavailable
	}
	return status.Error(code, err.Error())
}

// fromStatus turns a gRPC error back into a wrapped vehicle sentinel.
func fromStatus(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("%w: %v", vehicle.ErrCommunication, err)
	}

	sentinel := vehicle.ErrCommunication
	switch st.Code() {
	case codes.FailedPrecondition, codes.InvalidArgument:
		sentinel = vehicle.ErrRejected
	case codes.DeadlineExceeded:
		sentinel = vehicle.ErrTimeout
	case codes.Aborted:
		sentinel = vehicle.ErrClosed
	}
	return fmt.Errorf("%w: %s", sentinel, st.Message())
}
