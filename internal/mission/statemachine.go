package mission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/autopeer-io/skycourier/internal/pkg/metrics"
	"github.com/autopeer-io/skycourier/internal/vehicle"
)

// phaseHandler does the work of one phase and returns the event that leaves
// it. A returned error starts the recovery landing.
type phaseHandler func(ctx context.Context, logger logr.Logger, m *flight) (string, error)

// newHandlers connects phases to their logic. Terminal phases have no
// handler; reaching one ends the run loop.
func (c *Controller) newHandlers() map[Phase]phaseHandler {
	return map[Phase]phaseHandler{
		PhasePreArmCheck:       c.preArmCheckHandler,
		PhaseArming:            c.armingHandler,
		PhaseTakingOff:         c.takeoffHandler,
		PhaseEnRoute:           c.enRouteHandler,
		PhaseHovering:          c.hoverHandler,
		PhaseReturningToLaunch: c.returnHandler,
		PhaseLanding:           c.landingHandler,
	}
}

// preArmCheckHandler waits for the autopilot's pre-arm checks.
func (c *Controller) preArmCheckHandler(ctx context.Context, logger logr.Logger, m *flight) (string, error) {
	logger.Info("Waiting for vehicle to become armable")
	err := c.poll(ctx, m, c.opts.ArmableTimeout, ErrNotArmable, func(s vehicle.Snapshot) bool {
		return s.Armable
	})
	return EventArmable, err
}

// armingHandler switches to GUIDED, arms, and waits for the armed report.
func (c *Controller) armingHandler(ctx context.Context, logger logr.Logger, m *flight) (string, error) {
	logger.Info("Arming motors")
	if err := c.link.SetMode(ctx, vehicle.ModeGuided); err != nil {
		return "", err
	}
	if err := c.link.SetArmed(ctx, true); err != nil {
		return "", err
	}
	err := c.poll(ctx, m, c.opts.ArmTimeout, ErrArmingTimeout, func(s vehicle.Snapshot) bool {
		return s.Armed
	})
	return EventArmed, err
}

// takeoffHandler climbs to cruise altitude.
func (c *Controller) takeoffHandler(ctx context.Context, logger logr.Logger, m *flight) (string, error) {
	logger.Info("Taking off", "altitude", m.req.Altitude)
	if err := c.link.Takeoff(ctx, m.req.Altitude); err != nil {
		return "", err
	}
	err := c.poll(ctx, m, c.opts.ClimbTimeout, ErrClimbTimeout, func(s vehicle.Snapshot) bool {
		logger.V(1).Info("Climbing", "altitude", s.Altitude)
		return altitudeReached(s.Altitude, m.req.Altitude)
	})
	return EventClimbed, err
}

// enRouteHandler flies to the target. Completion is judged on altitude
// alone; horizontal proximity is not checked.
func (c *Controller) enRouteHandler(ctx context.Context, logger logr.Logger, m *flight) (string, error) {
	logger.Info("Navigating to target", "lat", m.req.Latitude, "lon", m.req.Longitude)
	if err := c.link.Goto(ctx, m.req.Latitude, m.req.Longitude, m.req.Altitude); err != nil {
		return "", err
	}
	err := c.poll(ctx, m, c.opts.NavigateTimeout, ErrNavigateTimeout, func(s vehicle.Snapshot) bool {
		return altitudeReached(s.Altitude, m.req.Altitude)
	})
	return EventArrived, err
}

// hoverHandler holds position for the dwell. No commands are issued.
func (c *Controller) hoverHandler(ctx context.Context, logger logr.Logger, m *flight) (string, error) {
	logger.Info("Hovering over target", "dwell", c.opts.Dwell)
	select {
	case <-c.clock.After(c.opts.Dwell):
		return EventDwelled, nil
	case <-ctx.Done():
		return "", abortErr(ctx)
	}
}

// returnHandler commands RTL. The mission is complete once the autopilot
// accepts it; the landing at home is not awaited.
func (c *Controller) returnHandler(ctx context.Context, logger logr.Logger, m *flight) (string, error) {
	logger.Info("Returning to launch")
	if err := c.link.SetMode(ctx, vehicle.ModeRTL); err != nil {
		return "", err
	}
	return EventComplete, nil
}

// landingHandler is the recovery path: command LAND and wait for disarm.
// It runs detached from the mission's cancellation so an aborted mission
// still lands.
func (c *Controller) landingHandler(ctx context.Context, logger logr.Logger, m *flight) (string, error) {
	ctx = context.WithoutCancel(ctx)
	next := EventFail
	if m.aborted() {
		next = EventAbort
	}

	if err := c.link.SetMode(ctx, vehicle.ModeLand); err != nil {
		logger.Error(err, "LAND command failed, still waiting for disarm")
		m.landingErr = err
	}

	err := wait.PollUntilContextTimeout(ctx, c.opts.PollInterval, c.opts.LandTimeout, true, func(pctx context.Context) (bool, error) {
		s, err := c.link.Snapshot(pctx)
		if err != nil {
			if errors.Is(err, vehicle.ErrClosed) {
				return false, err
			}
			metrics.SnapshotErrorsTotal.WithLabelValues("mission").Inc()
			logger.V(1).Info("Snapshot failed while landing", "error", err.Error())
			return false, nil
		}
		m.observe(s)
		return !s.Armed, nil
	})
	switch {
	case err == nil:
		logger.Info("Vehicle landed and disarmed")
	case wait.Interrupted(err):
		m.landingErr = errors.Join(m.landingErr, fmt.Errorf("%w within %s", ErrLandingTimeout, c.opts.LandTimeout))
	default:
		m.landingErr = errors.Join(m.landingErr, err)
	}
	return next, nil
}

// poll reads snapshots every PollInterval until done reports true. It
// returns timeoutErr after timeout, an ErrAborted error when ctx is
// cancelled, and the link error of a failed read.
func (c *Controller) poll(ctx context.Context, m *flight, timeout time.Duration, timeoutErr error, done func(vehicle.Snapshot) bool) error {
	err := wait.PollUntilContextTimeout(ctx, c.opts.PollInterval, timeout, true, func(pctx context.Context) (bool, error) {
		s, err := c.link.Snapshot(pctx)
		if err != nil {
			// A read cut short by the deadline or by cancellation is
			// reported as such below, not as a link failure.
			if pctx.Err() != nil {
				return false, nil
			}
			metrics.SnapshotErrorsTotal.WithLabelValues("mission").Inc()
			return false, err
		}
		m.observe(s)
		return done(s), nil
	})

	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return abortErr(ctx)
	case wait.Interrupted(err):
		return fmt.Errorf("%w within %s", timeoutErr, timeout)
	default:
		return err
	}
}

func abortErr(ctx context.Context) error {
	return fmt.Errorf("%w: %v", ErrAborted, context.Cause(ctx))
}
