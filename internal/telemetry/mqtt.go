package telemetry

import (
	"context"

	"github.com/autopeer-io/skycourier/internal/pkg/metrics"
	"github.com/autopeer-io/skycourier/pkg/mqtt"
	"github.com/autopeer-io/skycourier/pkg/mqtt/topic"
)

const KindMQTT = "mqtt"

// MQTTSink republishes every frame to {root}/telemetry/{vehicleID} at QoS 0.
// The MQTT client belongs to the caller; Close leaves it running.
type MQTTSink struct {
	client mqtt.Client
	topic  string
}

var _ Subscriber = (*MQTTSink)(nil)

// NewMQTTSink returns a sink publishing through client.
func NewMQTTSink(client mqtt.Client, topics *topic.TopicBuilder, vehicleID string) *MQTTSink {
	return &MQTTSink{client: client, topic: topics.Telemetry(vehicleID)}
}

func (s *MQTTSink) ID() string   { return KindMQTT + ":" + s.topic }
func (s *MQTTSink) Kind() string { return KindMQTT }

// Topic returns the topic frames are published on.
func (s *MQTTSink) Topic() string { return s.topic }

// Send publishes frame. While the broker is unreachable frames are skipped
// rather than failing, so the sink survives a reconnect.
func (s *MQTTSink) Send(ctx context.Context, frame []byte) error {
	if !s.client.IsConnected() {
		metrics.TelemetryDroppedTotal.WithLabelValues("mqtt_offline").Inc()
		return nil
	}
	return s.client.Publish(ctx, s.topic, 0, false, frame)
}

func (s *MQTTSink) Close() error { return nil }
