package grpclink

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/autopeer-io/skycourier/internal/pkg/metrics"
	grpcmiddleware "github.com/autopeer-io/skycourier/internal/pkg/middleware/grpc"
	"github.com/autopeer-io/skycourier/internal/vehicle"
	"github.com/autopeer-io/skycourier/pkg/log"
)

// Client is a vehicle.Link served by a remote link daemon.
type Client struct {
	conn   *grpc.ClientConn
	logger log.Logger
}

var _ vehicle.Link = (*Client)(nil)

// Dial connects to the link daemon at addr and waits until the channel is
// ready or ctx expires. callTimeout bounds each call made without a
// deadline. Extra dial options are appended, which tests use to dial over
// bufconn.
func Dial(ctx context.Context, addr string, callTimeout time.Duration, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(grpcmiddleware.WithTimeout(callTimeout)),
	}, opts...)

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, vehicle.NewLinkError(vehicle.OpConnect, fmt.Errorf("%w: %v", vehicle.ErrConnection, err))
	}

	c := &Client{conn: conn, logger: log.WithName("grpclink").WithValues("addr", addr)}
	if err := c.awaitReady(ctx); err != nil {
		_ = conn.Close()
		return nil, vehicle.NewLinkError(vehicle.OpConnect, fmt.Errorf("%w: %s not ready: %v", vehicle.ErrConnection, addr, err))
	}
	c.updateMetric(connectivity.Ready)
	return c, nil
}

func (c *Client) awaitReady(ctx context.Context) error {
	c.conn.Connect()
	for {
		state := c.conn.GetState()
		if state == connectivity.Ready {
			return nil
		}
		if !c.conn.WaitForStateChange(ctx, state) {
			return ctx.Err()
		}
	}
}

// Start watches the channel state until ctx is done. It implements the
// server manager's Server interface. The connection stays open: a mission
// aborted by the same shutdown still has to command the landing, so the
// owner of the link closes it once that is over.
func (c *Client) Start(ctx context.Context) error {
	c.logger.Info("Link client lifecycle manager started")
	c.monitorConnection(ctx)
	c.logger.Info("Link client monitor stopped")
	return nil
}

// Close closes the connection. Calls in flight fail with ErrCommunication.
func (c *Client) Close() error {
	c.updateMetric(connectivity.Shutdown)
	return c.conn.Close()
}

func (c *Client) monitorConnection(ctx context.Context) {
	lastState := c.conn.GetState()
	c.updateMetric(lastState)

	for {
		if !c.conn.WaitForStateChange(ctx, lastState) {
			return
		}

		newState := c.conn.GetState()
		c.logger.Info("Link connection state changed", "from", lastState.String(), "to", newState.String())

		c.updateMetric(newState)
		lastState = newState
	}
}

func (c *Client) updateMetric(state connectivity.State) {
	if state == connectivity.Ready {
		metrics.LinkConnectivityStatus.Set(1)
	} else {
		metrics.LinkConnectivityStatus.Set(0)
	}
}

func (c *Client) Snapshot(ctx context.Context) (vehicle.Snapshot, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, methodSnapshot, &emptypb.Empty{}, out); err != nil {
		return vehicle.Snapshot{}, vehicle.NewLinkError(vehicle.OpSnapshot, fromStatus(err))
	}
	snap, err := structToSnapshot(out)
	return snap, vehicle.NewLinkError(vehicle.OpSnapshot, err)
}

func (c *Client) SetMode(ctx context.Context, mode vehicle.Mode) error {
	return c.invoke(ctx, vehicle.OpSetMode, methodSetMode, wrapperspb.String(string(mode)))
}

func (c *Client) SetArmed(ctx context.Context, armed bool) error {
	return c.invoke(ctx, vehicle.OpSetArmed, methodSetArmed, wrapperspb.Bool(armed))
}

func (c *Client) Takeoff(ctx context.Context, altitude float64) error {
	return c.invoke(ctx, vehicle.OpTakeoff, methodTakeoff, wrapperspb.Double(altitude))
}

func (c *Client) Goto(ctx context.Context, lat, lon, altitude float64) error {
	return c.invoke(ctx, vehicle.OpGoto, methodGoto, positionToStruct(lat, lon, altitude))
}

func (c *Client) invoke(ctx context.Context, op, method string, in any) error {
	if err := c.conn.Invoke(ctx, method, in, new(emptypb.Empty)); err != nil {
		return vehicle.NewLinkError(op, fromStatus(err))
	}
	return nil
}
