package paths

// Topic segments for the Skycourier protocol. A full topic is
// {root}/{segment}/{vehicleID}. Changing a value breaks every deployed
// companion bridge and dashboard.

// Ground -> Vehicle
const (
	// LinkCommand carries one vehicle command to the companion bridge.
	// Payload: { "id": "...", "op": "set_mode", "mode": "GUIDED", ... }
	// Pattern: {root}/link/command/{vehicleID}
	LinkCommand = "link/command"
)

// Vehicle -> Ground
const (
	// LinkAck acknowledges a LinkCommand by id.
	// Payload: { "id": "...", "ok": true, "error": "" }
	// Pattern: {root}/link/ack/{vehicleID}
	LinkAck = "link/ack"

	// LinkState is the vehicle state stream published by the bridge.
	// Payload: { "lat": .., "lon": .., "alt": .., "armed": .., "mode": "..", "armable": .. }
	// Pattern: {root}/link/state/{vehicleID}
	LinkState = "link/state"
)

// Ground -> Observers
const (
	// Telemetry carries the broadcaster's position frames.
	// Payload: { "lat": .., "lon": .., "alt": .. }
	// Pattern: {root}/telemetry/{vehicleID}
	Telemetry = "telemetry"

	// MissionEvent carries phase transitions and mission outcomes.
	// Pattern: {root}/mission/event/{vehicleID}
	MissionEvent = "mission/event"

	// Status is the retained online marker of the courier server.
	// Payload: { "online": true/false }
	// Pattern: {root}/status/{vehicleID}
	Status = "status"
)
