package courier

import (
	"context"
	"fmt"
	"os"

	"github.com/autopeer-io/skycourier/internal/gateway"
	"github.com/autopeer-io/skycourier/internal/mission"
	"github.com/autopeer-io/skycourier/internal/telemetry"
	"github.com/autopeer-io/skycourier/internal/vehicle"
	"github.com/autopeer-io/skycourier/pkg/log"
	"github.com/autopeer-io/skycourier/pkg/mqtt"
	"github.com/autopeer-io/skycourier/pkg/mqtt/topic"
	"github.com/autopeer-io/skycourier/pkg/options"
)

type Config struct {
	HttpOptions      *options.HttpOptions
	GrpcOptions      *options.GrpcOptions
	MqttOptions      *options.MqttOptions
	LinkOptions      *options.LinkOptions
	MissionOptions   *options.MissionOptions
	TelemetryOptions *options.TelemetryOptions
}

// NewCourierServer opens the vehicle link and wires the mission controller,
// the telemetry broadcaster and the HTTP gateway around it. A link that
// cannot be opened is a startup error.
func (cfg *Config) NewCourierServer(ctx context.Context) (*CourierServer, error) {
	s := &CourierServer{vehicleID: cfg.LinkOptions.VehicleID}
	topics := topic.NewTopicBuilder(cfg.MqttOptions.TopicRoot)

	// 1. Infrastructure: MQTT, needed by the mqtt link driver and the sinks
	if cfg.MqttOptions.Enabled || cfg.LinkOptions.Driver == options.LinkDriverMqtt {
		client, err := InitializeMQTTClient(cfg.MqttOptions, "courier", topics.Status(s.vehicleID))
		if err != nil {
			return nil, fmt.Errorf("failed to init mqtt client: %w", err)
		}
		if err := client.Start(ctx); err != nil {
			return nil, fmt.Errorf("failed to start mqtt client: %w", err)
		}
		s.mqttClient, s.statusTopic = client, topics.Status(s.vehicleID)
	}

	// 2. The one vehicle link of this process
	link, servers, err := openLink(ctx, cfg, s.mqttClient)
	if err != nil {
		s.disconnect(ctx)
		return nil, err
	}
	s.shared = vehicle.NewShared(link, vehicle.SharedOptions{SerializeReads: cfg.LinkOptions.SerializeReads})

	// 3. Core: mission controller and telemetry
	missionOpts := []mission.Option{mission.WithOptions(MissionConfig(cfg.MissionOptions))}
	broadcaster := telemetry.NewBroadcaster(s.shared.Reader(),
		telemetry.WithInterval(cfg.TelemetryOptions.Interval),
		telemetry.WithSendTimeout(cfg.TelemetryOptions.SendTimeout),
	)
	if cfg.MqttOptions.Enabled {
		notifier := NewMQTTNotifier(s.mqttClient, topics, s.vehicleID)
		missionOpts = append(missionOpts, mission.WithNotifier(notifier))
		servers = append(servers, notifier)
		broadcaster.Subscribe(telemetry.NewMQTTSink(s.mqttClient, topics, s.vehicleID))
	}
	s.controller = mission.New(s.shared.Commander(), missionOpts...)
	s.landTimeout = cfg.MissionOptions.LandTimeout

	// 4. Ingress
	servers = append(servers, broadcaster, gateway.NewServer(cfg.HttpOptions, s.controller, broadcaster))
	s.serverManager = NewManager(servers...)

	return s, nil
}

// MissionConfig converts flag options into controller timings.
func MissionConfig(o *options.MissionOptions) mission.Options {
	return mission.Options{
		CruiseAltitude:  o.CruiseAltitude,
		PollInterval:    o.PollInterval,
		Dwell:           o.Dwell,
		ArmableTimeout:  o.ArmableTimeout,
		ArmTimeout:      o.ArmTimeout,
		ClimbTimeout:    o.ClimbTimeout,
		NavigateTimeout: o.NavigateTimeout,
		LandTimeout:     o.LandTimeout,
	}
}

// InitializeMQTTClient builds an unstarted client. The broker publishes
// "offline" on statusTopic if the process dies without disconnecting.
func InitializeMQTTClient(opts *options.MqttOptions, role, statusTopic string) (mqtt.Client, error) {
	cfg := opts.ToClientConfig()

	if cfg.ClientID == "" {
		hostname, _ := os.Hostname()
		cfg.ClientID = fmt.Sprintf("skycourier-%s-%s", role, hostname)
	}
	if statusTopic != "" {
		cfg.WillTopic = statusTopic
		cfg.WillPayload = []byte(StatusOffline)
		cfg.WillQoS = 1
		cfg.WillRetain = true
	}

	client, err := mqtt.NewClient(cfg)
	if err != nil {
		log.Error(err, "failed to new mqtt client")
		return nil, err
	}
	return client, nil
}
