package mission

import (
	"time"

	"k8s.io/utils/clock"

	"github.com/autopeer-io/skycourier/pkg/log"
)

// Options holds the cadence and the bound of every wait in a mission.
type Options struct {
	CruiseAltitude  float64
	PollInterval    time.Duration
	Dwell           time.Duration
	ArmableTimeout  time.Duration
	ArmTimeout      time.Duration
	ClimbTimeout    time.Duration
	NavigateTimeout time.Duration
	LandTimeout     time.Duration
}

// DefaultOptions returns the reference cadence: 10 m cruise, 1 s polling
// and a 10 s hover.
func DefaultOptions() Options {
	return Options{
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

// Option configures a Controller.
type Option func(*Controller)

// WithOptions replaces the mission timings.
func WithOptions(o Options) Option {
	return func(c *Controller) { c.opts = o }
}

// WithLogger sets the controller's logger.
func WithLogger(l log.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithNotifier registers an observer of phase changes and outcomes.
func WithNotifier(n Notifier) Option {
	return func(c *Controller) {
		if n != nil {
			c.notifier = n
		}
	}
}

// WithClock sets the clock used for the hover dwell and timestamps.
func WithClock(clk clock.Clock) Option {
	return func(c *Controller) { c.clock = clk }
}
