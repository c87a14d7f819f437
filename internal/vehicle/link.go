// Package vehicle defines the link to the flight controller that the mission
// controller commands and the telemetry broadcaster samples.
package vehicle

import (
	"context"
	"fmt"
)

// Mode is a flight mode understood by the autopilot.
type Mode string

const (
	ModeGuided    Mode = "GUIDED"
	ModeRTL       Mode = "RTL"
	ModeLand      Mode = "LAND"
	ModeStabilize Mode = "STABILIZE"
)

// Valid reports whether m is a mode this system knows how to request.
func (m Mode) Valid() bool {
	switch m {
	case ModeGuided, ModeRTL, ModeLand, ModeStabilize:
		return true
	}
	return false
}

func (m Mode) String() string { return string(m) }

// Snapshot is a point-in-time view of the vehicle. Altitude is meters above
// the launch point.
type Snapshot struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
	Altitude  float64 `json:"alt"`
	Armed     bool    `json:"armed"`
	Mode      Mode    `json:"mode"`
	Armable   bool    `json:"armable"`
}

func (s Snapshot) String() string {
	return fmt.Sprintf("lat=%.6f lon=%.6f alt=%.2f armed=%t mode=%s armable=%t",
		s.Latitude, s.Longitude, s.Altitude, s.Armed, s.Mode, s.Armable)
}

// SnapshotReader is the read-only side of a Link.
type SnapshotReader interface {
	Snapshot(ctx context.Context) (Snapshot, error)
}

// Link is a connected vehicle. Every call may block on the transport and may
// fail; a returned nil only means the autopilot accepted the request; callers
// confirm its effect by reading a later Snapshot.
type Link interface {
	SnapshotReader

	SetMode(ctx context.Context, mode Mode) error
	SetArmed(ctx context.Context, armed bool) error
	Takeoff(ctx context.Context, altitude float64) error
	Goto(ctx context.Context, lat, lon, altitude float64) error
}

// Link operation names used in errors, logs and metrics.
const (
	OpConnect  = "connect"
	OpSnapshot = "snapshot"
	OpSetMode  = "set_mode"
	OpSetArmed = "set_armed"
	OpTakeoff  = "takeoff"
	OpGoto     = "goto"
)
