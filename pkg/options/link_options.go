package options

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*LinkOptions)(nil)

// Link driver names accepted by --link.driver.
const (
	LinkDriverSim  = "sim"
	LinkDriverGrpc = "grpc"
	LinkDriverMqtt = "mqtt"
)

// LinkOptions selects and tunes the single vehicle link a process owns.
type LinkOptions struct {
	// Driver is one of "sim", "grpc" or "mqtt".
	Driver string `json:"driver" mapstructure:"driver"`

	// VehicleID names the vehicle in MQTT topics and logs.
	VehicleID string `json:"vehicle-id" mapstructure:"vehicle-id"`

	// SerializeReads routes snapshot reads through the command lock, for
	// transports that cannot serve concurrent reads.
	SerializeReads bool `json:"serialize-reads" mapstructure:"serialize-reads"`

	// CommandTimeout bounds a single command round trip on the mqtt driver.
	CommandTimeout time.Duration `json:"command-timeout" mapstructure:"command-timeout"`

	// StaleAfter marks an mqtt snapshot as unusable once no state message
	// has arrived for this long.
	StaleAfter time.Duration `json:"stale-after" mapstructure:"stale-after"`

	Sim *SimOptions `json:"sim" mapstructure:"sim"`
}

// SimOptions tunes the built-in vehicle simulator.
type SimOptions struct {
	HomeLatitude  float64       `json:"home-lat" mapstructure:"home-lat"`
	HomeLongitude float64       `json:"home-lon" mapstructure:"home-lon"`
	ClimbRate     float64       `json:"climb-rate" mapstructure:"climb-rate"` // m/s
	Speed         float64       `json:"speed" mapstructure:"speed"`           // m/s horizontal
	ArmableAfter  time.Duration `json:"armable-after" mapstructure:"armable-after"`
	Tick          time.Duration `json:"tick" mapstructure:"tick"`
}

// NewLinkOptions returns a simulator-backed link, which is what a developer
// laptop without a flight controller wants.
func NewLinkOptions() *LinkOptions {
	return &LinkOptions{
		Driver:         LinkDriverSim,
		VehicleID:      "uav-001",
		CommandTimeout: 5 * time.Second,
		StaleAfter:     3 * time.Second,
		Sim: &SimOptions{
			HomeLatitude:  48.8566,
			HomeLongitude: 2.3522,
			ClimbRate:     2.5,
			Speed:         8,
			ArmableAfter:  2 * time.Second,
			Tick:          100 * time.Millisecond,
		},
	}
}

// Validate checks the driver name and simulator parameters.
func (o *LinkOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errors := []error{}

	switch o.Driver {
	case LinkDriverSim, LinkDriverGrpc, LinkDriverMqtt:
	default:
		errors = append(errors, fmt.Errorf("--link.driver must be one of sim, grpc, mqtt; got %q", o.Driver))
	}
	if o.VehicleID == "" {
		errors = append(errors, fmt.Errorf("--link.vehicle-id must not be empty"))
	}
	if o.Driver == LinkDriverMqtt && o.CommandTimeout <= 0 {
		errors = append(errors, fmt.Errorf("--link.command-timeout must be positive"))
	}
	if o.Sim != nil && o.Driver == LinkDriverSim {
		if o.Sim.ClimbRate <= 0 || o.Sim.Speed <= 0 {
			errors = append(errors, fmt.Errorf("--link.sim.climb-rate and --link.sim.speed must be positive"))
		}
		if o.Sim.Tick <= 0 {
			errors = append(errors, fmt.Errorf("--link.sim.tick must be positive"))
		}
	}

	return errors
}

// AddFlags adds flags for LinkOptions to the specified FlagSet.
func (o *LinkOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Driver, "link.driver", o.Driver, "Vehicle link driver: sim, grpc (courier-linkd) or mqtt (companion bridge).")
	fs.StringVar(&o.VehicleID, "link.vehicle-id", o.VehicleID, "Identifier of the vehicle, used in topics and logs.")
	fs.BoolVar(&o.SerializeReads, "link.serialize-reads", o.SerializeReads, "Serialize snapshot reads with commands for transports that are not concurrently readable.")
	fs.DurationVar(&o.CommandTimeout, "link.command-timeout", o.CommandTimeout, "Round-trip timeout of one command on the mqtt driver.")
	fs.DurationVar(&o.StaleAfter, "link.stale-after", o.StaleAfter, "Age after which an mqtt vehicle state is considered lost.")

	if o.Sim == nil {
		o.Sim = &SimOptions{}
	}
	fs.Float64Var(&o.Sim.HomeLatitude, "link.sim.home-lat", o.Sim.HomeLatitude, "Simulator launch latitude.")
	fs.Float64Var(&o.Sim.HomeLongitude, "link.sim.home-lon", o.Sim.HomeLongitude, "Simulator launch longitude.")
	fs.Float64Var(&o.Sim.ClimbRate, "link.sim.climb-rate", o.Sim.ClimbRate, "Simulator vertical speed in m/s.")
	fs.Float64Var(&o.Sim.Speed, "link.sim.speed", o.Sim.Speed, "Simulator horizontal speed in m/s.")
	fs.DurationVar(&o.Sim.ArmableAfter, "link.sim.armable-after", o.Sim.ArmableAfter, "Simulated pre-arm initialisation time.")
	fs.DurationVar(&o.Sim.Tick, "link.sim.tick", o.Sim.Tick, "Simulator physics step.")
}
