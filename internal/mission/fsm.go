package mission

import (
	"context"
	"fmt"

	"github.com/looplab/fsm"

	"github.com/autopeer-io/skycourier/internal/pkg/metrics"
	fsmutil "github.com/autopeer-io/skycourier/internal/pkg/util/fsm"
)

const (
	// EventStart (Active) begins a mission from Idle.
	EventStart = "event_start"
	// EventArmable fires once pre-arm checks pass.
	EventArmable = "event_armable"
	// EventArmed fires once the vehicle reports armed.
	EventArmed = "event_armed"
	// EventClimbed fires once takeoff reaches cruise altitude.
	EventClimbed = "event_climbed"
	// EventArrived fires once the navigation leg completes.
	EventArrived = "event_arrived"
	// EventDwelled fires after the hover.
	EventDwelled = "event_dwelled"
	// EventComplete fires once RTL has been commanded.
	EventComplete = "event_complete"
	// EventLand starts the recovery landing from any flight phase.
	EventLand = "event_land"
	// EventFail ends a recovery landing as Failed.
	EventFail = "event_fail"
	// EventAbort ends a recovery landing as Aborted.
	EventAbort = "event_abort"
	// EventReset (Active) returns a finished mission to Idle.
	EventReset = "event_reset"
)

// flightPhases are the phases a recovery landing may start from.
var flightPhases = []string{
	string(PhasePreArmCheck),
	string(PhaseArming),
	string(PhaseTakingOff),
	string(PhaseEnRoute),
	string(PhaseHovering),
	string(PhaseReturningToLaunch),
}

// missionFSM is the transition table of one mission. The work of each phase
// lives in the handlers of statemachine.go; callbacks here only record what
// happened.
type missionFSM struct {
	*fsm.FSM

	c *Controller
	m *flight
}

func newMissionFSM(c *Controller, m *flight) *missionFSM {
	f := &missionFSM{c: c, m: m}

	events := fsm.Events{
		{Name: EventStart, Src: []string{string(PhaseIdle)}, Dst: string(PhasePreArmCheck)},
		{Name: EventArmable, Src: []string{string(PhasePreArmCheck)}, Dst: string(PhaseArming)},
		{Name: EventArmed, Src: []string{string(PhaseArming)}, Dst: string(PhaseTakingOff)},
		{Name: EventClimbed, Src: []string{string(PhaseTakingOff)}, Dst: string(PhaseEnRoute)},
		{Name: EventArrived, Src: []string{string(PhaseEnRoute)}, Dst: string(PhaseHovering)},
		{Name: EventDwelled, Src: []string{string(PhaseHovering)}, Dst: string(PhaseReturningToLaunch)},
		{Name: EventComplete, Src: []string{string(PhaseReturningToLaunch)}, Dst: string(PhaseCompleted)},

		// Recovery
		{Name: EventLand, Src: flightPhases, Dst: string(PhaseLanding)},
		{Name: EventFail, Src: []string{string(PhaseLanding)}, Dst: string(PhaseFailed)},
		{Name: EventAbort, Src: []string{string(PhaseLanding)}, Dst: string(PhaseAborted)},

		{Name: EventReset, Src: []string{string(PhaseCompleted), string(PhaseFailed), string(PhaseAborted)}, Dst: string(PhaseIdle)},
	}

	callbacks := fsm.Callbacks{
		// Guards (before_...): Decide if a transition is allowed
		fsmutil.BeforeEvent(EventComplete): fsmutil.WrapEvent(f.GuardNoFailure),

		// Side-Effects (enter_...)
		"enter_state":                           fsmutil.WrapEvent(f.ActionEnterState),
		fsmutil.EnterState(string(PhaseLanding)): fsmutil.WrapEvent(f.ActionEnterLanding),
	}

	f.FSM = fsm.NewFSM(string(PhaseIdle), events, callbacks)
	return f
}

// fire triggers event. Transitions must happen even when the mission's
// context is cancelled, otherwise an aborted mission could never reach
// Landing, so the fsm never sees cancellation.
func (f *missionFSM) fire(ctx context.Context, event string) error {
	return f.Event(context.WithoutCancel(ctx), event)
}

func (f *missionFSM) phase() Phase { return Phase(f.Current()) }

// GuardNoFailure is a "Guard" callback. A mission that recorded a failure
// may not be reported as completed.
func (f *missionFSM) GuardNoFailure(ctx context.Context, e *fsm.Event) error {
	if f.m.reason != nil {
		e.Cancel(fmt.Errorf("mission %s failed: %w", f.m.id, f.m.reason))
	}
	return nil
}

// ActionEnterState is a "Side-Effect" callback run on every transition.
func (f *missionFSM) ActionEnterState(ctx context.Context, e *fsm.Event) error {
	from, to := Phase(e.Src), Phase(e.Dst)
	metrics.MissionPhaseTransitionsTotal.WithLabelValues(string(to)).Inc()
	f.c.recordPhase(to)

	if to == PhaseIdle {
		return nil
	}
	f.c.logger.Info("Mission phase changed", "mission", f.m.id, "from", string(from), "to", string(to))
	f.c.notifier.PhaseChanged(ctx, PhaseEvent{
		MissionID: f.m.id,
		From:      from,
		To:        to,
		Target:    f.m.req,
		Snapshot:  f.m.lastSnapshot(),
		At:        f.c.clock.Now(),
	})
	return nil
}

// ActionEnterLanding is a "Side-Effect" callback.
func (f *missionFSM) ActionEnterLanding(ctx context.Context, e *fsm.Event) error {
	f.c.logger.Warn("Starting recovery landing", "mission", f.m.id, "from", e.Src, "reason", fmt.Sprint(f.m.reason))
	return nil
}
