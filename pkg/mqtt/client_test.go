package mqtt

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestTopicMatches(t *testing.T) {
	tests := []struct {
		filter, topic string
		want          bool
	}{
		{"skycourier/v1/telemetry/uav-001", "skycourier/v1/telemetry/uav-001", true},
		{"skycourier/v1/telemetry/+", "skycourier/v1/telemetry/uav-001", true},
		{"skycourier/v1/telemetry/+", "skycourier/v1/telemetry/uav-001/extra", false},
		{"skycourier/v1/#", "skycourier/v1/link/ack/uav-001", true},
		{"skycourier/v1/link/ack/+", "skycourier/v1/link/state/uav-001", false},
		{"skycourier/v1/+/uav-001", "skycourier/v1", false},
		{"a/b", "a/c", false},
	}

	for _, tt := range tests {
		if got := TopicMatches(tt.filter, tt.topic); got != tt.want {
			t.Errorf("TopicMatches(%q, %q) = %v, want %v", tt.filter, tt.topic, got, tt.want)
		}
	}
}

func TestTopicFilterStripsSharePrefix(t *testing.T) {
	if got := topicFilter("$share/couriers/skycourier/v1/link/ack/+"); got != "skycourier/v1/link/ack/+" {
		t.Errorf("topicFilter = %q", got)
	}
	if got := topicFilter("plain/topic"); got != "plain/topic" {
		t.Errorf("topicFilter = %q", got)
	}
}

func TestNewClientValidatesConfig(t *testing.T) {
	if _, err := NewClient(nil); err == nil {
		t.Error("NewClient(nil) succeeded")
	}
	if _, err := NewClient(&ClientConfig{}); err == nil {
		t.Error("NewClient with empty broker succeeded")
	}
	if _, err := NewClient(&ClientConfig{BrokerURL: "tcp://127.0.0.1:1883", WillTopic: "x", WillQoS: 3}); err == nil {
		t.Error("NewClient with will qos 3 succeeded")
	}

	cfg := &ClientConfig{BrokerURL: "tcp://127.0.0.1:1883"}
	if _, err := NewClient(cfg); err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if cfg.KeepAlive != 60 || cfg.ConnectTimeout != 5*time.Second {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}

func TestOperationsBeforeStart(t *testing.T) {
	c, err := NewClient(&ClientConfig{BrokerURL: "tcp://127.0.0.1:1883"})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if err := c.Publish(ctx, "t", 0, false, nil); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Publish err = %v, want ErrNotStarted", err)
	}
	if err := c.Subscribe(ctx, "t", 0, func(context.Context, string, []byte) {}); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Subscribe err = %v, want ErrNotStarted", err)
	}
	if c.IsConnected() {
		t.Error("IsConnected before Start")
	}
	c.Disconnect(ctx)
}
