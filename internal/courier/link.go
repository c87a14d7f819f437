package courier

import (
	"context"
	"fmt"

	"github.com/autopeer-io/skycourier/internal/vehicle"
	"github.com/autopeer-io/skycourier/internal/vehicle/grpclink"
	"github.com/autopeer-io/skycourier/internal/vehicle/mqttlink"
	"github.com/autopeer-io/skycourier/internal/vehicle/sim"
	"github.com/autopeer-io/skycourier/pkg/log"
	"github.com/autopeer-io/skycourier/pkg/mqtt"
	"github.com/autopeer-io/skycourier/pkg/options"
)

// openLink connects the configured driver. Drivers with a lifecycle of their
// own come back as servers for the manager.
func openLink(ctx context.Context, cfg *Config, client mqtt.Client) (vehicle.Link, []Server, error) {
	lo := cfg.LinkOptions
	logger := log.WithValues("driver", lo.Driver, "vehicle", lo.VehicleID)

	switch lo.Driver {
	case options.LinkDriverSim:
		logger.Info("Using simulated vehicle", "home_lat", lo.Sim.HomeLatitude, "home_lon", lo.Sim.HomeLongitude)
		return sim.New(SimConfig(lo.Sim)), nil, nil

	case options.LinkDriverGrpc:
		dialCtx, cancel := context.WithTimeout(ctx, cfg.GrpcOptions.Timeout)
		defer cancel()
		c, err := grpclink.Dial(dialCtx, cfg.GrpcOptions.Addr, lo.CommandTimeout)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Connected to link daemon", "addr", cfg.GrpcOptions.Addr)
		return c, []Server{c}, nil

	case options.LinkDriverMqtt:
		connectCtx, cancel := context.WithTimeout(ctx, cfg.MqttOptions.ConnectTimeout)
		defer cancel()
		l, err := mqttlink.Connect(connectCtx, client, mqttlink.Options{
			VehicleID:      lo.VehicleID,
			TopicRoot:      cfg.MqttOptions.TopicRoot,
			CommandTimeout: lo.CommandTimeout,
			StaleAfter:     lo.StaleAfter,
		})
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Connected to vehicle bridge", "broker", cfg.MqttOptions.Broker)
		return l, nil, nil
	}

	return nil, nil, vehicle.NewLinkError(vehicle.OpConnect, fmt.Errorf("%w: unknown driver %q", vehicle.ErrConnection, lo.Driver))
}

// SimConfig converts flag options into simulator settings.
func SimConfig(o *options.SimOptions) sim.Config {
	return sim.Config{
		HomeLatitude:  o.HomeLatitude,
		HomeLongitude: o.HomeLongitude,
		ClimbRate:     o.ClimbRate,
		Speed:         o.Speed,
		ArmableAfter:  o.ArmableAfter,
		Tick:          o.Tick,
	}
}
