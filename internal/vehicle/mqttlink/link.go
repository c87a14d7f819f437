package mqttlink

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"k8s.io/utils/clock"

	"github.com/autopeer-io/skycourier/internal/vehicle"
	"github.com/autopeer-io/skycourier/pkg/log"
	"github.com/autopeer-io/skycourier/pkg/mqtt"
	"github.com/autopeer-io/skycourier/pkg/mqtt/topic"
)

// Options configures the ground side of the MQTT link.
type Options struct {
	VehicleID string
	TopicRoot string
	// CommandTimeout bounds the wait for an acknowledgement.
	CommandTimeout time.Duration
	// StaleAfter is how old the last state message may be before Snapshot
	// reports the link as lost.
	StaleAfter time.Duration
	Clock      clock.PassiveClock
}

// Link is a vehicle.Link whose autopilot sits behind an MQTT Bridge.
type Link struct {
	client mqtt.Client
	opts   Options
	topics *topic.TopicBuilder
	logger log.Logger

	lock    sync.Mutex
	pending map[string]chan ackMessage

	stateMu sync.RWMutex
	state   vehicle.Snapshot
	stateAt time.Time
}

var _ vehicle.Link = (*Link)(nil)

// Connect waits for the broker connection and subscribes to the vehicle's
// ack and state topics. client must already be started.
func Connect(ctx context.Context, client mqtt.Client, opts Options) (*Link, error) {
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = 5 * time.Second
	}
	l := &Link{
		client:  client,
		opts:    opts,
		topics:  topic.NewTopicBuilder(opts.TopicRoot),
		logger:  log.WithName("mqttlink").WithValues("vehicle", opts.VehicleID),
		pending: make(map[string]chan ackMessage),
	}

	connErr := func(err error) error {
		return vehicle.NewLinkError(vehicle.OpConnect, fmt.Errorf("%w: %v", vehicle.ErrConnection, err))
	}
	if err := client.AwaitConnection(ctx); err != nil {
		return nil, connErr(err)
	}
	if err := client.Subscribe(ctx, l.topics.LinkAck(opts.VehicleID), 1, l.handleAck); err != nil {
		return nil, connErr(err)
	}
	if err := client.Subscribe(ctx, l.topics.LinkState(opts.VehicleID), 0, l.handleState); err != nil {
		return nil, connErr(err)
	}
	return l, nil
}

func (l *Link) Snapshot(ctx context.Context) (vehicle.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return vehicle.Snapshot{}, fmt.Errorf("%w: %v", vehicle.ErrCommunication, err)
	}

	l.stateMu.RLock()
	defer l.stateMu.RUnlock()

	if l.stateAt.IsZero() {
		return vehicle.Snapshot{}, fmt.Errorf("%w: no state received yet", vehicle.ErrCommunication)
	}
	if age := l.opts.Clock.Since(l.stateAt); l.opts.StaleAfter > 0 && age > l.opts.StaleAfter {
		return vehicle.Snapshot{}, fmt.Errorf("%w: last state is %s old", vehicle.ErrCommunication, age.Round(time.Millisecond))
	}
	return l.state, nil
}

func (l *Link) SetMode(ctx context.Context, mode vehicle.Mode) error {
	return l.command(ctx, commandMessage{Op: vehicle.OpSetMode, Mode: string(mode)})
}

func (l *Link) SetArmed(ctx context.Context, armed bool) error {
	return l.command(ctx, commandMessage{Op: vehicle.OpSetArmed, Armed: ptr(armed)})
}

func (l *Link) Takeoff(ctx context.Context, altitude float64) error {
	return l.command(ctx, commandMessage{Op: vehicle.OpTakeoff, Altitude: ptr(altitude)})
}

func (l *Link) Goto(ctx context.Context, lat, lon, altitude float64) error {
	return l.command(ctx, commandMessage{Op: vehicle.OpGoto, Lat: ptr(lat), Lon: ptr(lon), Altitude: ptr(altitude)})
}

// command publishes cmd and waits for the acknowledgement carrying its id.
func (l *Link) command(ctx context.Context, cmd commandMessage) error {
	cmd.ID = uuid.NewString()
	payload, err := json.Marshal(cmd)
	if err != nil {
		return err
	}

	ch := make(chan ackMessage, 1)
	l.lock.Lock()
	l.pending[cmd.ID] = ch
	l.lock.Unlock()
	defer func() {
		l.lock.Lock()
		delete(l.pending, cmd.ID)
		l.lock.Unlock()
	}()

	if err := l.client.Publish(ctx, l.topics.LinkCommand(l.opts.VehicleID), 1, false, payload); err != nil {
		return fmt.Errorf("%w: publish %s: %v", vehicle.ErrCommunication, cmd.Op, err)
	}

	timer := time.NewTimer(l.opts.CommandTimeout)
	defer timer.Stop()

	select {
	case ack := <-ch:
		switch {
		case ack.OK:
			return nil
		case ack.Rejected:
			return fmt.Errorf("%w: %s", vehicle.ErrRejected, ack.Error)
		default:
			return fmt.Errorf("%w: %s", vehicle.ErrCommunication, ack.Error)
		}
	case <-timer.C:
		return fmt.Errorf("%w: no ack for %s within %s", vehicle.ErrTimeout, cmd.Op, l.opts.CommandTimeout)
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", vehicle.ErrCommunication, ctx.Err())
	}
}

func (l *Link) handleAck(ctx context.Context, topic string, payload []byte) {
	var ack ackMessage
	if err := json.Unmarshal(payload, &ack); err != nil {
		l.logger.Warn("Dropping malformed ack", "topic", topic, "error", err.Error())
		return
	}

	l.lock.Lock()
	ch, ok := l.pending[ack.ID]
	delete(l.pending, ack.ID)
	l.lock.Unlock()

	if !ok {
		l.logger.Debug("Dropping ack for unknown command", "id", ack.ID)
		return
	}
	ch <- ack
}

func (l *Link) handleState(ctx context.Context, topic string, payload []byte) {
	var snap vehicle.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		l.logger.Warn("Dropping malformed state", "topic", topic, "error", err.Error())
		return
	}

	l.stateMu.Lock()
	l.state = snap
	l.stateAt = l.opts.Clock.Now()
	l.stateMu.Unlock()
}
