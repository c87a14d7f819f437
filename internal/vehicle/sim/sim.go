// Package sim is a kinematic multicopter used as the vehicle link in
// development and tests. Position is integrated lazily from the clock on
// every call, so a fake clock drives it deterministically.
package sim

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"github.com/autopeer-io/skycourier/internal/vehicle"
	"github.com/autopeer-io/skycourier/pkg/log"
)

const (
	metersPerDegree = 111320.0
	// groundTolerance is the altitude below which the vehicle counts as landed.
	groundTolerance = 0.1
	// arrivalTolerance is the horizontal distance at which a target counts as reached.
	arrivalTolerance = 0.5
)

// Config describes the simulated airframe.
type Config struct {
	HomeLatitude  float64
	HomeLongitude float64
	ClimbRate     float64       // m/s
	Speed         float64       // m/s
	ArmableAfter  time.Duration // pre-arm checks pass after this long
	Tick          time.Duration // integration step
	Clock         clock.Clock
}

// Vehicle is a simulated vehicle implementing vehicle.Link.
type Vehicle struct {
	cfg    Config
	clock  clock.Clock
	logger log.Logger

	mu     sync.Mutex
	bootAt time.Time
	last   time.Time
	state  vehicle.Snapshot
	target *waypoint
	faults map[string]error
	closed bool
}

type waypoint struct {
	lat, lon, alt float64
}

var _ vehicle.Link = (*Vehicle)(nil)

// New powers on a vehicle at the home position.
func New(cfg Config) *Vehicle {
	if cfg.Clock == nil {
		cfg.Clock = clock.RealClock{}
	}
	if cfg.Tick <= 0 {
		cfg.Tick = 100 * time.Millisecond
	}
	now := cfg.Clock.Now()
	return &Vehicle{
		cfg:    cfg,
		clock:  cfg.Clock,
		logger: log.WithName("sim"),
		bootAt: now,
		last:   now,
		state: vehicle.Snapshot{
			Latitude:  cfg.HomeLatitude,
			Longitude: cfg.HomeLongitude,
			Mode:      vehicle.ModeStabilize,
		},
		faults: map[string]error{},
	}
}

// InjectFault makes the next call of op fail with err.
func (v *Vehicle) InjectFault(op string, err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.faults[op] = err
}

func (v *Vehicle) Snapshot(ctx context.Context) (vehicle.Snapshot, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.check(ctx, vehicle.OpSnapshot); err != nil {
		return vehicle.Snapshot{}, err
	}
	return v.state, nil
}

func (v *Vehicle) SetMode(ctx context.Context, mode vehicle.Mode) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.check(ctx, vehicle.OpSetMode); err != nil {
		return err
	}
	if !mode.Valid() {
		return fmt.Errorf("%w: unknown mode %q", vehicle.ErrRejected, mode)
	}

	v.state.Mode = mode
	switch mode {
	case vehicle.ModeRTL:
		v.target = &waypoint{lat: v.cfg.HomeLatitude, lon: v.cfg.HomeLongitude, alt: v.state.Altitude}
	case vehicle.ModeLand:
		v.target = &waypoint{lat: v.state.Latitude, lon: v.state.Longitude, alt: 0}
	case vehicle.ModeStabilize:
		v.target = nil
	}
	v.logger.Info("Mode changed", "mode", mode)
	return nil
}

func (v *Vehicle) SetArmed(ctx context.Context, armed bool) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.check(ctx, vehicle.OpSetArmed); err != nil {
		return err
	}

	if armed {
		if !v.state.Armable {
			return fmt.Errorf("%w: pre-arm checks have not passed", vehicle.ErrRejected)
		}
		v.state.Armed = true
		v.logger.Info("Armed")
		return nil
	}
	if v.state.Altitude > groundTolerance {
		return fmt.Errorf("%w: cannot disarm in flight", vehicle.ErrRejected)
	}
	v.state.Armed = false
	return nil
}

func (v *Vehicle) Takeoff(ctx context.Context, altitude float64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.check(ctx, vehicle.OpTakeoff); err != nil {
		return err
	}
	if !v.state.Armed || v.state.Mode != vehicle.ModeGuided {
		return fmt.Errorf("%w: takeoff requires an armed vehicle in GUIDED", vehicle.ErrRejected)
	}
	if altitude <= 0 {
		return fmt.Errorf("%w: takeoff altitude must be positive", vehicle.ErrRejected)
	}

	v.target = &waypoint{lat: v.state.Latitude, lon: v.state.Longitude, alt: altitude}
	v.logger.Info("Taking off", "altitude", altitude)
	return nil
}

func (v *Vehicle) Goto(ctx context.Context, lat, lon, altitude float64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.check(ctx, vehicle.OpGoto); err != nil {
		return err
	}
	if !v.state.Armed || v.state.Mode != vehicle.ModeGuided {
		return fmt.Errorf("%w: goto requires an armed vehicle in GUIDED", vehicle.ErrRejected)
	}

	v.target = &waypoint{lat: lat, lon: lon, alt: altitude}
	v.logger.Info("Navigating", "lat", lat, "lon", lon, "alt", altitude)
	return nil
}

// Close powers the simulator off.
func (v *Vehicle) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closed = true
	return nil
}

// check advances the simulation to now and reports closure, cancellation
// and injected faults for op. Callers hold mu.
func (v *Vehicle) check(ctx context.Context, op string) error {
	if v.closed {
		return vehicle.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", vehicle.ErrCommunication, err)
	}
	v.advance(v.clock.Now())
	if err, ok := v.faults[op]; ok {
		delete(v.faults, op)
		return err
	}
	return nil
}

// advance integrates the flight from v.last to now in Tick steps.
func (v *Vehicle) advance(now time.Time) {
	if !v.state.Armable && now.Sub(v.bootAt) >= v.cfg.ArmableAfter {
		v.state.Armable = true
	}

	for !v.last.Add(v.cfg.Tick).After(now) {
		v.last = v.last.Add(v.cfg.Tick)
		v.step(v.cfg.Tick.Seconds())
	}
}

func (v *Vehicle) step(dt float64) {
	if !v.state.Armed || v.target == nil {
		return
	}

	// RTL climbs to nothing and flies home level, then descends.
	if v.state.Mode == vehicle.ModeRTL && v.horizontalDistance() <= arrivalTolerance {
		v.target.alt = 0
	}

	v.state.Altitude = approach(v.state.Altitude, v.target.alt, v.cfg.ClimbRate*dt)

	// No horizontal movement until the vehicle is off the ground.
	if v.state.Altitude > groundTolerance {
		v.moveHorizontally(v.cfg.Speed * dt)
	}

	landing := v.state.Mode == vehicle.ModeLand || v.state.Mode == vehicle.ModeRTL
	if landing && v.target.alt == 0 && v.state.Altitude <= groundTolerance {
		v.state.Altitude = 0
		v.state.Armed = false
		v.target = nil
		v.logger.Info("Landed and disarmed")
	}
}

func (v *Vehicle) moveHorizontally(maxStep float64) {
	d := v.horizontalDistance()
	if d <= arrivalTolerance {
		v.state.Latitude, v.state.Longitude = v.target.lat, v.target.lon
		return
	}
	f := math.Min(1, maxStep/d)
	v.state.Latitude += (v.target.lat - v.state.Latitude) * f
	v.state.Longitude += (v.target.lon - v.state.Longitude) * f
}

// horizontalDistance is an equirectangular approximation in meters, good
// enough for delivery-sized distances.
func (v *Vehicle) horizontalDistance() float64 {
	dy := (v.target.lat - v.state.Latitude) * metersPerDegree
	dx := (v.target.lon - v.state.Longitude) * metersPerDegree * math.Cos(v.state.Latitude*math.Pi/180)
	return math.Hypot(dx, dy)
}

func approach(cur, target, maxStep float64) float64 {
	switch {
	case cur < target:
		return math.Min(cur+maxStep, target)
	case cur > target:
		return math.Max(cur-maxStep, target)
	}
	return cur
}
