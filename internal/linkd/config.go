package linkd

import (
	"context"
	"fmt"

	"github.com/autopeer-io/skycourier/internal/courier"
	"github.com/autopeer-io/skycourier/internal/vehicle"
	"github.com/autopeer-io/skycourier/internal/vehicle/mqttlink"
	"github.com/autopeer-io/skycourier/internal/vehicle/sim"
	"github.com/autopeer-io/skycourier/pkg/mqtt/topic"
	"github.com/autopeer-io/skycourier/pkg/options"
)

type Config struct {
	GrpcOptions *options.GrpcOptions
	MqttOptions *options.MqttOptions
	LinkOptions *options.LinkOptions
}

// NewLinkDaemon takes ownership of the vehicle link and prepares the gRPC
// endpoint in front of it. With MQTT enabled the same link is also bridged
// onto the link topics.
func (cfg *Config) NewLinkDaemon(ctx context.Context) (*LinkDaemon, error) {
	if cfg.LinkOptions.Driver != options.LinkDriverSim {
		return nil, &vehicle.LinkError{Op: "connect", Err: fmt.Errorf("%w: link daemon cannot serve driver %q",
			vehicle.ErrConnection, cfg.LinkOptions.Driver)}
	}

	d := &LinkDaemon{vehicleID: cfg.LinkOptions.VehicleID}
	topics := topic.NewTopicBuilder(cfg.MqttOptions.TopicRoot)

	link := sim.New(courier.SimConfig(cfg.LinkOptions.Sim))
	d.shared = vehicle.NewShared(link, vehicle.SharedOptions{SerializeReads: cfg.LinkOptions.SerializeReads})

	d.grpcServer = NewGrpcServer(cfg.GrpcOptions, d.shared)
	servers := []courier.Server{d.grpcServer}

	if cfg.MqttOptions.Enabled {
		d.statusTopic = topics.Status(d.vehicleID)
		client, err := courier.InitializeMQTTClient(cfg.MqttOptions, "linkd", d.statusTopic)
		if err != nil {
			_ = d.shared.Close()
			return nil, fmt.Errorf("failed to init mqtt client: %w", err)
		}
		if err := client.Start(ctx); err != nil {
			_ = d.shared.Close()
			return nil, fmt.Errorf("failed to start mqtt client: %w", err)
		}
		d.mqttClient = client
		servers = append(servers, mqttlink.NewBridge(client, d.shared, mqttlink.BridgeOptions{
			VehicleID: d.vehicleID,
			TopicRoot: cfg.MqttOptions.TopicRoot,
		}))
	}

	d.serverManager = courier.NewManager(servers...)
	return d, nil
}
