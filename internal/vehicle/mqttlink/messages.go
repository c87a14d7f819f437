// Package mqttlink carries a vehicle.Link over an MQTT broker. The ground
// side (Link) publishes commands and reads the state stream; the vehicle
// side (Bridge) runs on the companion computer next to the autopilot.
package mqttlink

import (
	"encoding/json"
	"fmt"

	"github.com/autopeer-io/skycourier/internal/vehicle"
)

// commandMessage is published on {root}/link/command/{vehicleID}.
type commandMessage struct {
	ID       string   `json:"id"`
	Op       string   `json:"op"`
	Mode     string   `json:"mode,omitempty"`
	Armed    *bool    `json:"armed,omitempty"`
	Lat      *float64 `json:"lat,omitempty"`
	Lon      *float64 `json:"lon,omitempty"`
	Altitude *float64 `json:"alt,omitempty"`
}

// ackMessage is published on {root}/link/ack/{vehicleID}.
type ackMessage struct {
	ID    string `json:"id"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	// Rejected distinguishes an autopilot refusal from a transport failure.
	Rejected bool `json:"rejected,omitempty"`
}

// The state stream on {root}/link/state/{vehicleID} is a JSON vehicle.Snapshot.

func decodeCommand(payload []byte) (commandMessage, error) {
	var cmd commandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return cmd, err
	}
	if cmd.ID == "" {
		return cmd, fmt.Errorf("command without id")
	}

	missing := func(field string) error { return fmt.Errorf("%s command without %s", cmd.Op, field) }
	switch cmd.Op {
	case vehicle.OpSetMode:
		if cmd.Mode == "" {
			return cmd, missing("mode")
		}
	case vehicle.OpSetArmed:
		if cmd.Armed == nil {
			return cmd, missing("armed")
		}
	case vehicle.OpTakeoff:
		if cmd.Altitude == nil {
			return cmd, missing("alt")
		}
	case vehicle.OpGoto:
		if cmd.Lat == nil || cmd.Lon == nil || cmd.Altitude == nil {
			return cmd, missing("lat, lon and alt")
		}
	default:
		return cmd, fmt.Errorf("unknown op %q", cmd.Op)
	}
	return cmd, nil
}

func ptr[T any](v T) *T { return &v }
