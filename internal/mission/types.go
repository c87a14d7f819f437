// Package mission sequences a single delivery flight: pre-arm checks,
// arming, takeoff, navigation, hover and return to launch, with a landing
// recovery on any failure.
package mission

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/autopeer-io/skycourier/internal/vehicle"
)

// Phase is a state of the mission state machine.
type Phase string

const (
	PhaseIdle              Phase = "Idle"
	PhasePreArmCheck       Phase = "PreArmCheck"
	PhaseArming            Phase = "Arming"
	PhaseTakingOff         Phase = "TakingOff"
	PhaseEnRoute           Phase = "EnRoute"
	PhaseHovering          Phase = "Hovering"
	PhaseReturningToLaunch Phase = "ReturningToLaunch"
	PhaseLanding           Phase = "Landing"
	PhaseCompleted         Phase = "Completed"
	PhaseFailed            Phase = "Failed"
	PhaseAborted           Phase = "Aborted"
)

// Terminal reports whether p ends a mission.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseFailed || p == PhaseAborted
}

// AltitudeReachedFraction is the share of the target altitude at which a
// climb or a navigation leg counts as complete. It is a fraction, not an
// absolute tolerance, so low targets get a proportionally small margin.
const AltitudeReachedFraction = 0.95

// altitudeReached is the completion predicate of TakingOff and EnRoute.
func altitudeReached(current, target float64) bool {
	return current >= AltitudeReachedFraction*target
}

var (
	// ErrMissionInProgress is returned by Run while another mission is in flight.
	ErrMissionInProgress = errors.New("a mission is already in progress")
	// ErrInvalidRequest is returned by Run for a request that cannot be flown.
	ErrInvalidRequest = errors.New("invalid mission request")

	ErrNotArmable      = errors.New("vehicle did not become armable")
	ErrArmingTimeout   = errors.New("vehicle did not arm")
	ErrClimbTimeout    = errors.New("vehicle did not reach cruise altitude")
	ErrNavigateTimeout = errors.New("vehicle did not reach the target")
	ErrLandingTimeout  = errors.New("vehicle did not disarm after landing")
	// ErrAborted means the mission's context was cancelled.
	ErrAborted = errors.New("mission aborted")
)

// PhaseError records the phase a mission failed in.
type PhaseError struct {
	Phase Phase
	Err   error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s: %v", e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error { return e.Err }

// Request is a delivery target. Altitude zero means the controller's cruise
// altitude.
type Request struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
	Altitude  float64 `json:"alt"`
}

// Validate rejects coordinates outside the WGS84 range and non-finite values.
func (r Request) Validate() error {
	for _, v := range []float64{r.Latitude, r.Longitude, r.Altitude} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: coordinates must be finite", ErrInvalidRequest)
		}
	}
	if r.Latitude < -90 || r.Latitude > 90 {
		return fmt.Errorf("%w: latitude %v out of range", ErrInvalidRequest, r.Latitude)
	}
	if r.Longitude < -180 || r.Longitude > 180 {
		return fmt.Errorf("%w: longitude %v out of range", ErrInvalidRequest, r.Longitude)
	}
	if r.Altitude < 0 {
		return fmt.Errorf("%w: altitude must not be negative", ErrInvalidRequest)
	}
	return nil
}

// Result is the terminal classification of a mission.
type Result string

const (
	ResultCompleted Result = "Completed"
	ResultFailed    Result = "Failed"
	ResultAborted   Result = "Aborted"
)

// Outcome is what Run reports for a mission that started.
type Outcome struct {
	ID     string
	Result Result
	// Reason is a *PhaseError for Failed and Aborted outcomes.
	Reason error
	// LandingErr is set when the recovery landing could not be confirmed.
	LandingErr error
	Duration   time.Duration
}

// Succeeded reports whether the mission completed.
func (o Outcome) Succeeded() bool { return o.Result == ResultCompleted }

// Status is a read-only view of the controller.
type Status struct {
	Phase        Phase             `json:"phase"`
	Active       bool              `json:"active"`
	MissionID    string            `json:"missionID,omitempty"`
	Target       *Request          `json:"target,omitempty"`
	StartedAt    *time.Time        `json:"startedAt,omitempty"`
	LastSnapshot *vehicle.Snapshot `json:"lastSnapshot,omitempty"`
	LastResult   Result            `json:"lastResult,omitempty"`
	Error        string            `json:"error,omitempty"`
}
