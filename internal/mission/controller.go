package mission

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"k8s.io/utils/clock"

	"github.com/autopeer-io/skycourier/internal/pkg/metrics"
	"github.com/autopeer-io/skycourier/internal/vehicle"
	"github.com/autopeer-io/skycourier/pkg/log"
)

// errAbortRequested is the cancellation cause recorded by Abort.
var errAbortRequested = errors.New("abort requested by operator")

// Controller runs delivery missions on one vehicle, one at a time.
type Controller struct {
	link     vehicle.Link
	opts     Options
	logger   log.Logger
	notifier Notifier
	clock    clock.Clock
	handlers map[Phase]phaseHandler

	lock   sync.Mutex
	active *flight
	cancel context.CancelCauseFunc
	status Status
}

// flight is the state of one mission run.
type flight struct {
	id        string
	req       Request
	startedAt time.Time

	// reason is the error that sent the mission to Landing.
	reason     error
	landingErr error

	mu   sync.Mutex
	last *vehicle.Snapshot
}

func (m *flight) observe(s vehicle.Snapshot) {
	m.mu.Lock()
	m.last = &s
	m.mu.Unlock()
}

func (m *flight) lastSnapshot() *vehicle.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.last == nil {
		return nil
	}
	s := *m.last
	return &s
}

func (m *flight) aborted() bool { return errors.Is(m.reason, ErrAborted) }

// New returns an idle controller commanding link. link must be the process's
// only commanding handle on the vehicle.
func New(link vehicle.Link, opts ...Option) *Controller {
	c := &Controller{
		link:     link,
		opts:     DefaultOptions(),
		logger:   log.WithName("mission"),
		notifier: nopNotifier{},
		clock:    clock.RealClock{},
		status:   Status{Phase: PhaseIdle},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.handlers = c.newHandlers()
	return c
}

// Run flies req to completion and reports the outcome. The error is
// ErrMissionInProgress when another mission is in flight and wraps
// ErrInvalidRequest for a request that cannot be flown; any started mission
// returns a nil error and an Outcome. Cancelling ctx aborts the mission,
// which still lands the vehicle before Run returns.
func (c *Controller) Run(ctx context.Context, req Request) (Outcome, error) {
	if err := req.Validate(); err != nil {
		metrics.MissionRejectedTotal.WithLabelValues("invalid").Inc()
		return Outcome{}, err
	}
	if req.Altitude == 0 {
		req.Altitude = c.opts.CruiseAltitude
	}

	m := &flight{id: uuid.NewString(), req: req, startedAt: c.clock.Now()}

	// Two missions would interleave commands on the one link, so a second
	// trigger is refused instead of queued. Earlier delivery services let
	// overlapping triggers race on the link; this guard is deliberately stricter.
	c.lock.Lock()
	if c.active != nil {
		c.lock.Unlock()
		metrics.MissionRejectedTotal.WithLabelValues("busy").Inc()
		return Outcome{}, ErrMissionInProgress
	}
	ctx, cancel := context.WithCancelCause(ctx)
	c.active, c.cancel = m, cancel
	c.status = Status{
		Phase:     PhaseIdle,
		Active:    true,
		MissionID: m.id,
		Target:    &m.req,
		StartedAt: &m.startedAt,
	}
	c.lock.Unlock()

	metrics.MissionActive.Set(1)
	defer func() {
		cancel(nil)
		metrics.MissionActive.Set(0)
		c.lock.Lock()
		c.active, c.cancel = nil, nil
		c.status.Active = false
		c.lock.Unlock()
	}()

	outcome := c.execute(ctx, m)
	c.notifier.MissionFinished(context.WithoutCancel(ctx), req, outcome)
	return outcome, nil
}

// execute drives the state machine from Idle back to Idle.
func (c *Controller) execute(ctx context.Context, m *flight) Outcome {
	machine := newMissionFSM(c, m)
	logger := c.logger.WithValues("mission", m.id).Logr()

	logger.Info("Mission started", "lat", m.req.Latitude, "lon", m.req.Longitude, "alt", m.req.Altitude)
	if err := machine.fire(ctx, EventStart); err != nil {
		// Only a broken transition table gets here.
		panic(fmt.Sprintf("mission: cannot start: %v", err))
	}

	for {
		phase := machine.phase()
		handler, ok := c.handlers[phase]
		if !ok {
			break
		}

		var (
			event string
			err   error
		)
		if ctxErr := ctx.Err(); ctxErr != nil && phase != PhaseLanding {
			err = abortErr(ctx)
		} else {
			event, err = handler(ctx, logger.WithValues("phase", string(phase)), m)
		}

		if err != nil {
			if ctx.Err() != nil && !errors.Is(err, ErrAborted) {
				err = fmt.Errorf("%w: %w", ErrAborted, err)
			}
			m.reason = &PhaseError{Phase: phase, Err: err}
			logger.Error(err, "Mission phase failed", "phase", string(phase))
			event = EventLand
		}

		if err := machine.fire(ctx, event); err != nil {
			logger.Error(err, "Illegal mission transition", "phase", string(phase), "event", event)
			if phase == PhaseLanding {
				break
			}
			m.reason = &PhaseError{Phase: phase, Err: err}
			if err := machine.fire(ctx, EventLand); err != nil {
				break
			}
		}
	}

	outcome := c.outcome(m, machine.phase())
	logger.Info("Mission finished", "result", string(outcome.Result), "duration", outcome.Duration)

	c.lock.Lock()
	c.status.LastResult = outcome.Result
	c.status.Error = ""
	if outcome.Reason != nil {
		c.status.Error = outcome.Reason.Error()
	}
	c.lock.Unlock()

	metrics.MissionsTotal.WithLabelValues(string(outcome.Result)).Inc()
	metrics.MissionDuration.WithLabelValues(string(outcome.Result)).Observe(outcome.Duration.Seconds())

	if err := machine.fire(ctx, EventReset); err != nil {
		c.logger.Error(err, "Failed to reset mission state machine", "mission", m.id)
	}
	return outcome
}

func (c *Controller) outcome(m *flight, final Phase) Outcome {
	o := Outcome{
		ID:         m.id,
		Reason:     m.reason,
		LandingErr: m.landingErr,
		Duration:   c.clock.Since(m.startedAt),
	}
	switch final {
	case PhaseCompleted:
		o.Result = ResultCompleted
	case PhaseAborted:
		o.Result = ResultAborted
	default:
		o.Result = ResultFailed
		if o.Reason == nil {
			o.Reason = &PhaseError{Phase: final, Err: errors.New("mission stopped in a non-terminal phase")}
		}
	}
	return o
}

// Abort cancels the mission in flight. It reports whether there was one.
// The mission lands before its Run returns.
func (c *Controller) Abort() bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.cancel == nil {
		return false
	}
	c.cancel(errAbortRequested)
	return true
}

// Status returns a snapshot of the controller state.
func (c *Controller) Status() Status {
	c.lock.Lock()
	s := c.status
	m := c.active
	c.lock.Unlock()

	if m != nil {
		s.LastSnapshot = m.lastSnapshot()
	}
	return s
}

func (c *Controller) recordPhase(p Phase) {
	c.lock.Lock()
	c.status.Phase = p
	c.lock.Unlock()
}
