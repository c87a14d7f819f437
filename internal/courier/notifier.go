package courier

import (
	"context"
	"encoding/json"
	"time"

	"github.com/autopeer-io/skycourier/internal/mission"
	"github.com/autopeer-io/skycourier/internal/vehicle"
	"github.com/autopeer-io/skycourier/pkg/log"
	pkgmqtt "github.com/autopeer-io/skycourier/pkg/mqtt"
	"github.com/autopeer-io/skycourier/pkg/mqtt/topic"
)

const (
	publishTimeout = 5 * time.Second
	eventQueueSize = 64
)

// Event types on the mission event topic.
const (
	EventTypePhase   = "phase"
	EventTypeOutcome = "outcome"
)

// MissionEvent is the payload published on {root}/mission/event/{vehicleID}.
type MissionEvent struct {
	Type      string            `json:"type"`
	MissionID string            `json:"missionID"`
	Vehicle   string            `json:"vehicle"`
	At        time.Time         `json:"at"`
	From      mission.Phase     `json:"from,omitempty"`
	To        mission.Phase     `json:"to,omitempty"`
	Target    *mission.Request  `json:"target,omitempty"`
	Snapshot  *vehicle.Snapshot `json:"snapshot,omitempty"`

	Result       mission.Result `json:"result,omitempty"`
	Reason       string         `json:"reason,omitempty"`
	LandingError string         `json:"landingError,omitempty"`
	Duration     float64        `json:"durationSeconds,omitempty"`
}

// MQTTNotifier publishes mission phase changes and outcomes in order. Events
// are queued and published by Start, so a slow broker never holds up the
// mission; when the queue is full the event is dropped.
type MQTTNotifier struct {
	client    pkgmqtt.Client
	topic     string
	vehicleID string
	logger    log.Logger
	events    chan MissionEvent
}

var _ mission.Notifier = (*MQTTNotifier)(nil)

func NewMQTTNotifier(client pkgmqtt.Client, topics *topic.TopicBuilder, vehicleID string) *MQTTNotifier {
	return &MQTTNotifier{
		client:    client,
		topic:     topics.MissionEvent(vehicleID),
		vehicleID: vehicleID,
		logger:    log.WithName("notifier"),
		events:    make(chan MissionEvent, eventQueueSize),
	}
}

// Start publishes queued events until ctx is done, then flushes what is left.
func (n *MQTTNotifier) Start(ctx context.Context) error {
	for {
		select {
		case ev := <-n.events:
			n.send(ctx, ev)
		case <-ctx.Done():
			for {
				select {
				case ev := <-n.events:
					n.send(ctx, ev)
				default:
					return nil
				}
			}
		}
	}
}

func (n *MQTTNotifier) PhaseChanged(ctx context.Context, ev mission.PhaseEvent) {
	target := ev.Target
	n.publish(ctx, MissionEvent{
		Type:      EventTypePhase,
		MissionID: ev.MissionID,
		Vehicle:   n.vehicleID,
		At:        ev.At,
		From:      ev.From,
		To:        ev.To,
		Target:    &target,
		Snapshot:  ev.Snapshot,
	})
}

func (n *MQTTNotifier) MissionFinished(ctx context.Context, req mission.Request, o mission.Outcome) {
	ev := MissionEvent{
		Type:      EventTypeOutcome,
		MissionID: o.ID,
		Vehicle:   n.vehicleID,
		At:        time.Now(),
		Target:    &req,
		Result:    o.Result,
		Duration:  o.Duration.Seconds(),
	}
	if o.Reason != nil {
		ev.Reason = o.Reason.Error()
	}
	if o.LandingErr != nil {
		ev.LandingError = o.LandingErr.Error()
	}
	n.publish(ctx, ev)
}

func (n *MQTTNotifier) publish(_ context.Context, ev MissionEvent) {
	select {
	case n.events <- ev:
	default:
		n.logger.Warn("Mission event queue full, dropping event", "type", ev.Type, "mission", ev.MissionID)
	}
}

func (n *MQTTNotifier) send(ctx context.Context, ev MissionEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		n.logger.Error(err, "Failed to encode mission event")
		return
	}

	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := n.client.Publish(pctx, n.topic, 1, false, payload); err != nil {
		n.logger.Warn("Failed to publish mission event", "type", ev.Type, "mission", ev.MissionID, "error", err.Error())
	}
}
