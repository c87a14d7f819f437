package mqttlink

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/autopeer-io/skycourier/internal/vehicle"
	"github.com/autopeer-io/skycourier/pkg/log"
	"github.com/autopeer-io/skycourier/pkg/mqtt"
	"github.com/autopeer-io/skycourier/pkg/mqtt/topic"
)

// BridgeOptions configures the vehicle side of the MQTT link.
type BridgeOptions struct {
	VehicleID string
	TopicRoot string
	// StateInterval is the cadence of the state stream.
	StateInterval time.Duration
}

// Bridge executes commands received over MQTT on a local link and streams
// the link's state back.
type Bridge struct {
	client mqtt.Client
	link   vehicle.Link
	opts   BridgeOptions
	topics *topic.TopicBuilder
	logger log.Logger
}

// NewBridge returns a bridge for link. Start runs it.
func NewBridge(client mqtt.Client, link vehicle.Link, opts BridgeOptions) *Bridge {
	if opts.StateInterval <= 0 {
		opts.StateInterval = 500 * time.Millisecond
	}
	return &Bridge{
		client: client,
		link:   link,
		opts:   opts,
		topics: topic.NewTopicBuilder(opts.TopicRoot),
		logger: log.WithName("mqtt-bridge").WithValues("vehicle", opts.VehicleID),
	}
}

// Start subscribes to the command topic and publishes state until ctx is
// done.
func (b *Bridge) Start(ctx context.Context) error {
	cmdTopic := b.topics.LinkCommand(b.opts.VehicleID)
	if err := b.client.Subscribe(ctx, cmdTopic, 1, b.handleCommand); err != nil {
		return err
	}
	b.logger.Info("MQTT bridge started", "commands", cmdTopic)

	ticker := time.NewTicker(b.opts.StateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("MQTT bridge stopping")
			_ = b.client.Unsubscribe(context.WithoutCancel(ctx), cmdTopic)
			return nil
		case <-ticker.C:
			b.publishState(ctx)
		}
	}
}

func (b *Bridge) publishState(ctx context.Context) {
	snap, err := b.link.Snapshot(ctx)
	if err != nil {
		b.logger.Warn("Skipping state publish", "error", err.Error())
		return
	}
	payload, _ := json.Marshal(snap)
	if err := b.client.Publish(ctx, b.topics.LinkState(b.opts.VehicleID), 0, false, payload); err != nil {
		b.logger.Warn("Failed to publish state", "error", err.Error())
	}
}

func (b *Bridge) handleCommand(ctx context.Context, topic string, payload []byte) {
	cmd, err := decodeCommand(payload)
	if err != nil {
		b.logger.Warn("Rejecting malformed command", "topic", topic, "error", err.Error())
		if cmd.ID != "" {
			b.ack(ctx, ackMessage{ID: cmd.ID, Rejected: true, Error: err.Error()})
		}
		return
	}

	err = b.execute(ctx, cmd)
	ack := ackMessage{ID: cmd.ID, OK: err == nil}
	if err != nil {
		ack.Error = err.Error()
		ack.Rejected = errors.Is(err, vehicle.ErrRejected)
		b.logger.Warn("Command failed", "op", cmd.Op, "id", cmd.ID, "error", ack.Error)
	} else {
		b.logger.Debug("Command executed", "op", cmd.Op, "id", cmd.ID)
	}
	b.ack(ctx, ack)
}

func (b *Bridge) execute(ctx context.Context, cmd commandMessage) error {
	switch cmd.Op {
	case vehicle.OpSetMode:
		mode := vehicle.Mode(cmd.Mode)
		if !mode.Valid() {
			return vehicle.NewLinkError(cmd.Op, vehicle.ErrRejected)
		}
		return b.link.SetMode(ctx, mode)
	case vehicle.OpSetArmed:
		return b.link.SetArmed(ctx, *cmd.Armed)
	case vehicle.OpTakeoff:
		return b.link.Takeoff(ctx, *cmd.Altitude)
	default:
		return b.link.Goto(ctx, *cmd.Lat, *cmd.Lon, *cmd.Altitude)
	}
}

func (b *Bridge) ack(ctx context.Context, ack ackMessage) {
	payload, _ := json.Marshal(ack)
	if err := b.client.Publish(ctx, b.topics.LinkAck(b.opts.VehicleID), 1, false, payload); err != nil {
		b.logger.Warn("Failed to publish ack", "id", ack.ID, "error", err.Error())
	}
}
