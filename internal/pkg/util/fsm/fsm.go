package fsm

import (
	"context"

	"github.com/looplab/fsm"
)

// WrapEvent adapts an error-returning callback to fsm.Callback by storing the
// error on the event.
func WrapEvent(fn func(ctx context.Context, event *fsm.Event) error) fsm.Callback {
	return func(ctx context.Context, event *fsm.Event) {
		if err := fn(ctx, event); err != nil {
			event.Err = err
		}
	}
}

// BeforeEvent returns the callback key of a guard run before event fires.
func BeforeEvent(event string) string { return "before_" + event }

// EnterState returns the callback key of a side effect run on entering state.
func EnterState(state string) string { return "enter_" + state }

// LeaveState returns the callback key of a callback run when leaving state.
func LeaveState(state string) string { return "leave_" + state }

// IsNoTransition reports whether err only says the machine already was in
// the destination state.
func IsNoTransition(err error) bool {
	_, ok := err.(fsm.NoTransitionError)
	return ok
}
