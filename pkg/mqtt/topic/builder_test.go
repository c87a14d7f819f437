package topic

import "testing"

func TestTopicBuilder(t *testing.T) {
	b := NewTopicBuilder("skycourier/v1")

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"link command", b.LinkCommand("uav-001"), "skycourier/v1/link/command/uav-001"},
		{"link ack", b.LinkAck("uav-001"), "skycourier/v1/link/ack/uav-001"},
		{"link state", b.LinkState("uav-001"), "skycourier/v1/link/state/uav-001"},
		{"telemetry", b.Telemetry("uav-001"), "skycourier/v1/telemetry/uav-001"},
		{"telemetry wildcard", b.TelemetryWildcard(), "skycourier/v1/telemetry/+"},
		{"mission event", b.MissionEvent("uav-001"), "skycourier/v1/mission/event/uav-001"},
		{"mission wildcard", b.MissionEventWildcard(), "skycourier/v1/mission/event/+"},
		{"status", b.Status("uav-001"), "skycourier/v1/status/uav-001"},
	}

	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.want)
		}
	}
}
