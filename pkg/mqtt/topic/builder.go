package topic

import (
	"fmt"

	"github.com/autopeer-io/skycourier/internal/pkg/mqtt/paths"
)

// Wildcard matches one topic level, so a filter built with it covers every
// vehicle.
const Wildcard = "+"

// TopicBuilder encapsulates the logic for constructing MQTT topic strings.
type TopicBuilder struct {
	// root is the base namespace for all topics (e.g., "skycourier/v1").
	root string
}

// NewTopicBuilder creates a new instance of TopicBuilder with the specified root namespace.
func NewTopicBuilder(root string) *TopicBuilder {
	return &TopicBuilder{root: root}
}

// LinkCommand is where the ground side sends commands to a vehicle's bridge.
func (b *TopicBuilder) LinkCommand(vehicleID string) string {
	return b.build(paths.LinkCommand, vehicleID)
}

// LinkAck is where a bridge acknowledges commands.
func (b *TopicBuilder) LinkAck(vehicleID string) string {
	return b.build(paths.LinkAck, vehicleID)
}

// LinkState is where a bridge streams the vehicle state.
func (b *TopicBuilder) LinkState(vehicleID string) string {
	return b.build(paths.LinkState, vehicleID)
}

// Telemetry is where position frames are republished for observers.
func (b *TopicBuilder) Telemetry(vehicleID string) string {
	return b.build(paths.Telemetry, vehicleID)
}

// TelemetryWildcard follows every vehicle's position frames.
// Result: {root}/telemetry/+
func (b *TopicBuilder) TelemetryWildcard() string {
	return b.build(paths.Telemetry, Wildcard)
}

// MissionEvent is where phase changes and outcomes are published.
func (b *TopicBuilder) MissionEvent(vehicleID string) string {
	return b.build(paths.MissionEvent, vehicleID)
}

// MissionEventWildcard follows every vehicle's mission events.
func (b *TopicBuilder) MissionEventWildcard() string {
	return b.build(paths.MissionEvent, Wildcard)
}

// Status is the retained online marker.
func (b *TopicBuilder) Status(vehicleID string) string {
	return b.build(paths.Status, vehicleID)
}

// build joins the pattern {root}/{segment}/{identifier}.
func (b *TopicBuilder) build(segment, id string) string {
	return fmt.Sprintf("%s/%s/%s", b.root, segment, id)
}
