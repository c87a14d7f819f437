package mission

import (
	"context"
	"time"

	"github.com/autopeer-io/skycourier/internal/vehicle"
)

// PhaseEvent describes one transition of a mission.
type PhaseEvent struct {
	MissionID string            `json:"missionID"`
	From      Phase             `json:"from"`
	To        Phase             `json:"to"`
	Target    Request           `json:"target"`
	Snapshot  *vehicle.Snapshot `json:"snapshot,omitempty"`
	At        time.Time         `json:"at"`
}

// Notifier observes missions. Calls are made synchronously from the mission
// goroutine, so implementations must not block.
type Notifier interface {
	PhaseChanged(ctx context.Context, ev PhaseEvent)
	MissionFinished(ctx context.Context, req Request, outcome Outcome)
}

type nopNotifier struct{}

func (nopNotifier) PhaseChanged(context.Context, PhaseEvent)          {}
func (nopNotifier) MissionFinished(context.Context, Request, Outcome) {}
