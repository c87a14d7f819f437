package options

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*MissionOptions)(nil)

// MissionOptions holds the cadence and the bounds of every wait in a
// delivery mission.
type MissionOptions struct {
	CruiseAltitude  float64       `json:"cruise-altitude" mapstructure:"cruise-altitude"`
	PollInterval    time.Duration `json:"poll-interval" mapstructure:"poll-interval"`
	Dwell           time.Duration `json:"dwell" mapstructure:"dwell"`
	ArmableTimeout  time.Duration `json:"armable-timeout" mapstructure:"armable-timeout"`
	ArmTimeout      time.Duration `json:"arm-timeout" mapstructure:"arm-timeout"`
	ClimbTimeout    time.Duration `json:"climb-timeout" mapstructure:"climb-timeout"`
	NavigateTimeout time.Duration `json:"navigate-timeout" mapstructure:"navigate-timeout"`
	LandTimeout     time.Duration `json:"land-timeout" mapstructure:"land-timeout"`
}

// NewMissionOptions returns the reference cadence: 10 m cruise, 1 s polling,
// 10 s hover.
func NewMissionOptions() *MissionOptions {
	return &MissionOptions{
		CruiseAltitude:  10,
		PollInterval:    time.Second,
		Dwell:           10 * time.Second,
		ArmableTimeout:  60 * time.Second,
		ArmTimeout:      15 * time.Second,
		ClimbTimeout:    60 * time.Second,
		NavigateTimeout: 5 * time.Minute,
		LandTimeout:     3 * time.Minute,
	}
}

// Validate rejects non-positive durations and altitudes.
func (o *MissionOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errors := []error{}

	if o.CruiseAltitude <= 0 {
		errors = append(errors, fmt.Errorf("--mission.cruise-altitude must be positive"))
	}
	if o.Dwell < 0 {
		errors = append(errors, fmt.Errorf("--mission.dwell must not be negative"))
	}

	for name, d := range map[string]time.Duration{
		"poll-interval":    o.PollInterval,
		"armable-timeout":  o.ArmableTimeout,
		"arm-timeout":      o.ArmTimeout,
		"climb-timeout":    o.ClimbTimeout,
		"navigate-timeout": o.NavigateTimeout,
		"land-timeout":     o.LandTimeout,
	} {
		if d <= 0 {
			errors = append(errors, fmt.Errorf("--mission.%s must be positive", name))
		}
	}

	return errors
}

// AddFlags adds flags for MissionOptions to the specified FlagSet.
func (o *MissionOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.Float64Var(&o.CruiseAltitude, "mission.cruise-altitude", o.CruiseAltitude, "Altitude in meters for takeoff and navigation.")
	fs.DurationVar(&o.PollInterval, "mission.poll-interval", o.PollInterval, "Interval between vehicle snapshots while waiting for a phase to complete.")
	fs.DurationVar(&o.Dwell, "mission.dwell", o.Dwell, "Hover time at the target before returning to launch.")
	fs.DurationVar(&o.ArmableTimeout, "mission.armable-timeout", o.ArmableTimeout, "Maximum wait for the vehicle to report armable.")
	fs.DurationVar(&o.ArmTimeout, "mission.arm-timeout", o.ArmTimeout, "Maximum wait for the vehicle to report armed.")
	fs.DurationVar(&o.ClimbTimeout, "mission.climb-timeout", o.ClimbTimeout, "Maximum wait for takeoff to reach cruise altitude.")
	fs.DurationVar(&o.NavigateTimeout, "mission.navigate-timeout", o.NavigateTimeout, "Maximum wait for navigation to the target.")
	fs.DurationVar(&o.LandTimeout, "mission.land-timeout", o.LandTimeout, "Maximum wait for disarm after an emergency LAND.")
}
