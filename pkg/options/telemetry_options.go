package options

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*TelemetryOptions)(nil)

// TelemetryOptions configures the position broadcaster.
type TelemetryOptions struct {
	// Interval is the broadcast cadence.
	Interval time.Duration `json:"interval" mapstructure:"interval"`

	// SendTimeout bounds delivery of one frame to one subscriber.
	SendTimeout time.Duration `json:"send-timeout" mapstructure:"send-timeout"`
}

// NewTelemetryOptions returns the reference 1 Hz cadence.
func NewTelemetryOptions() *TelemetryOptions {
	return &TelemetryOptions{
		Interval:    time.Second,
		SendTimeout: 2 * time.Second,
	}
}

// Validate rejects non-positive durations.
func (o *TelemetryOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errors := []error{}

	if o.Interval <= 0 {
		errors = append(errors, fmt.Errorf("--telemetry.interval must be positive"))
	}
	if o.SendTimeout <= 0 {
		errors = append(errors, fmt.Errorf("--telemetry.send-timeout must be positive"))
	}

	return errors
}

// AddFlags adds flags for TelemetryOptions to the specified FlagSet.
func (o *TelemetryOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.DurationVar(&o.Interval, "telemetry.interval", o.Interval, "Interval between position broadcasts.")
	fs.DurationVar(&o.SendTimeout, "telemetry.send-timeout", o.SendTimeout, "Per-subscriber delivery timeout; slower subscribers are dropped.")
}
