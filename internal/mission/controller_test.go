package mission

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/autopeer-io/skycourier/internal/vehicle"
	"github.com/autopeer-io/skycourier/internal/vehicle/vehicletest"
)

func fastOptions() Options {
	return Options{
		CruiseAltitude:  10,
		PollInterval:    time.Millisecond,
		Dwell:           5 * time.Millisecond,
		ArmableTimeout:  2 * time.Second,
		ArmTimeout:      2 * time.Second,
		ClimbTimeout:    2 * time.Second,
		NavigateTimeout: 2 * time.Second,
		LandTimeout:     2 * time.Second,
	}
}

func waitForPhase(t *testing.T, c *Controller, phase Phase) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for c.Status().Phase != phase {
		if time.Now().After(deadline) {
			t.Fatalf("phase %s not reached, status %+v", phase, c.Status())
		}
		time.Sleep(time.Millisecond)
	}
}

func lastCall(calls []string) string {
	if len(calls) == 0 {
		return ""
	}
	return calls[len(calls)-1]
}

func TestMissionCompletes(t *testing.T) {
	fake := vehicletest.New(0, 0)
	c := New(fake, WithOptions(fastOptions()))

	outcome, err := c.Run(context.Background(), Request{Latitude: 10, Longitude: 20})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome.Result != ResultCompleted || outcome.Reason != nil || !outcome.Succeeded() {
		t.Fatalf("outcome = %+v, want Completed", outcome)
	}

	want := []string{"SetMode(GUIDED)", "SetArmed(true)", "Takeoff(10)", "Goto(10,20,10)", "SetMode(RTL)"}
	if got := fake.Calls(); !reflect.DeepEqual(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}

	st := c.Status()
	if st.Phase != PhaseIdle || st.Active || st.LastResult != ResultCompleted {
		t.Errorf("status after run = %+v", st)
	}
}

func TestMissionRepeats(t *testing.T) {
	fake := vehicletest.New(0, 0)
	c := New(fake, WithOptions(fastOptions()))

	for i := 0; i < 2; i++ {
		outcome, err := c.Run(context.Background(), Request{Latitude: 1, Longitude: 2})
		if err != nil || outcome.Result != ResultCompleted {
			t.Fatalf("run %d: outcome %+v err %v", i, outcome, err)
		}
	}
}

func TestGotoFailureLands(t *testing.T) {
	fake := vehicletest.New(0, 0)
	fake.Fail = map[string]error{vehicle.OpGoto: vehicle.ErrCommunication}
	c := New(vehicle.NewShared(fake, vehicle.SharedOptions{}), WithOptions(fastOptions()))

	outcome, _ := c.Run(context.Background(), Request{Latitude: 10, Longitude: 20})

	if outcome.Result != ResultFailed {
		t.Fatalf("result = %s, want Failed", outcome.Result)
	}
	calls := fake.Calls()
	if lastCall(calls) != "SetMode(LAND)" {
		t.Errorf("calls = %v, want to end with SetMode(LAND)", calls)
	}
	if !errors.Is(outcome.Reason, vehicle.ErrCommunication) || !vehicle.IsLinkError(outcome.Reason) {
		t.Errorf("reason = %v, want link communication error", outcome.Reason)
	}
	if !strings.Contains(outcome.Reason.Error(), "vehicle link goto") {
		t.Errorf("reason %q does not name the failed link call", outcome.Reason)
	}
	var pe *PhaseError
	if !errors.As(outcome.Reason, &pe) || pe.Phase != PhaseEnRoute {
		t.Errorf("reason = %#v, want PhaseError in EnRoute", outcome.Reason)
	}
	if outcome.LandingErr != nil {
		t.Errorf("landing err = %v", outcome.LandingErr)
	}
	if st := c.Status(); st.Phase != PhaseIdle || st.LastResult != ResultFailed || st.Error == "" {
		t.Errorf("status = %+v", st)
	}
}

func TestLinkFailureAfterArmingLands(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*vehicletest.Link)
		phase Phase
	}{
		{
			name:  "takeoff rejected",
			setup: func(l *vehicletest.Link) { l.Fail = map[string]error{vehicle.OpTakeoff: vehicle.ErrRejected} },
			phase: PhaseTakingOff,
		},
		{
			name:  "goto timeout",
			setup: func(l *vehicletest.Link) { l.Fail = map[string]error{vehicle.OpGoto: vehicle.ErrTimeout} },
			phase: PhaseEnRoute,
		},
		{
			name: "snapshot lost during climb",
			setup: func(l *vehicletest.Link) {
				// reads: 1 armable, 2 armed, 3 first climb read
				l.SnapshotErr = func(n int) error {
					if n == 3 {
						return vehicle.ErrCommunication
					}
					return nil
				}
			},
			phase: PhaseTakingOff,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			fake := vehicletest.New(0, 0)
			tt.setup(fake)
			c := New(vehicle.NewShared(fake, vehicle.SharedOptions{}), WithOptions(fastOptions()))

			outcome, err := c.Run(context.Background(), Request{Latitude: 10, Longitude: 20})
			if err != nil {
				t.Fatal(err)
			}
			if outcome.Result != ResultFailed {
				t.Fatalf("result = %s, want Failed", outcome.Result)
			}
			if got := lastCall(fake.Calls()); got != "SetMode(LAND)" {
				t.Errorf("last call = %s, want SetMode(LAND)", got)
			}
			var pe *PhaseError
			if !errors.As(outcome.Reason, &pe) || pe.Phase != tt.phase {
				t.Errorf("reason = %v, want failure in %s", outcome.Reason, tt.phase)
			}
			if fake.State().Armed {
				t.Error("vehicle still armed after recovery landing")
			}
		})
	}
}

func TestAltitudeThreshold(t *testing.T) {
	tests := []struct {
		climb     float64
		wantReads int
	}{
		{climb: 0.25, wantReads: 38},
		{climb: 0.5, wantReads: 19},
		{climb: 1, wantReads: 10},
		{climb: 2.5, wantReads: 4},
	}

	for _, tt := range tests {
		fake := vehicletest.New(0, 0)
		fake.ClimbPerRead = tt.climb
		c := New(fake, WithOptions(fastOptions()))

		if outcome, _ := c.Run(context.Background(), Request{Latitude: 1, Longitude: 1}); outcome.Result != ResultCompleted {
			t.Fatalf("climb %v: outcome %+v", tt.climb, outcome)
		}
		// calls: 0 GUIDED, 1 arm, 2 takeoff, 3 goto
		if got := fake.ReadsBefore(3) - fake.ReadsBefore(2); got != tt.wantReads {
			t.Errorf("climb %v: goto issued after %d climb reads, want %d", tt.climb, got, tt.wantReads)
		}
	}
}

func TestAltitudeReached(t *testing.T) {
	tests := []struct {
		current, target float64
		want            bool
	}{
		{9.49, 10, false},
		{9.5, 10, true},
		{10, 10, true},
		{0.94, 1, false},
		{0.95, 1, true},
	}
	for _, tt := range tests {
		if got := altitudeReached(tt.current, tt.target); got != tt.want {
			t.Errorf("altitudeReached(%v, %v) = %v, want %v", tt.current, tt.target, got, tt.want)
		}
	}
}

// timedLink records when the last read before RTL and RTL itself happened.
type timedLink struct {
	*vehicletest.Link

	mu            sync.Mutex
	lastRead      time.Time
	readBeforeRTL time.Time
	rtlAt         time.Time
}

func (l *timedLink) Snapshot(ctx context.Context) (vehicle.Snapshot, error) {
	s, err := l.Link.Snapshot(ctx)
	l.mu.Lock()
	l.lastRead = time.Now()
	l.mu.Unlock()
	return s, err
}

func (l *timedLink) SetMode(ctx context.Context, mode vehicle.Mode) error {
	if mode == vehicle.ModeRTL {
		l.mu.Lock()
		l.rtlAt = time.Now()
		l.readBeforeRTL = l.lastRead
		l.mu.Unlock()
	}
	return l.Link.SetMode(ctx, mode)
}

func TestHoverDwell(t *testing.T) {
	link := &timedLink{Link: vehicletest.New(0, 0)}
	opts := fastOptions()
	opts.Dwell = 50 * time.Millisecond
	c := New(link, WithOptions(opts))

	if outcome, _ := c.Run(context.Background(), Request{Latitude: 1, Longitude: 1}); outcome.Result != ResultCompleted {
		t.Fatalf("outcome = %+v", outcome)
	}

	if d := link.rtlAt.Sub(link.readBeforeRTL); d < opts.Dwell {
		t.Errorf("RTL issued %v after arrival, want at least %v", d, opts.Dwell)
	}
	calls := link.Calls()
	if n := len(calls); n < 2 || calls[n-2] != "Goto(1,1,10)" || calls[n-1] != "SetMode(RTL)" {
		t.Errorf("commands around the hover = %v", calls)
	}
}

func TestConcurrentRunRejected(t *testing.T) {
	fake := vehicletest.New(0, 0)
	fake.NotArmable = true
	opts := fastOptions()
	opts.ArmableTimeout = 10 * time.Second
	c := New(fake, WithOptions(opts))

	done := make(chan Outcome, 1)
	go func() {
		o, _ := c.Run(context.Background(), Request{Latitude: 1, Longitude: 1})
		done <- o
	}()
	waitForPhase(t, c, PhasePreArmCheck)

	if _, err := c.Run(context.Background(), Request{Latitude: 2, Longitude: 2}); !errors.Is(err, ErrMissionInProgress) {
		t.Fatalf("second Run err = %v, want ErrMissionInProgress", err)
	}
	if calls := fake.Calls(); len(calls) != 0 {
		t.Fatalf("commands issued while waiting for armable: %v", calls)
	}

	if !c.Abort() {
		t.Fatal("Abort found no mission")
	}
	outcome := <-done
	if outcome.Result != ResultAborted || !errors.Is(outcome.Reason, ErrAborted) {
		t.Fatalf("first outcome = %+v, want Aborted", outcome)
	}
	if got := fake.Calls(); !reflect.DeepEqual(got, []string{"SetMode(LAND)"}) {
		t.Errorf("calls = %v, want only the recovery LAND", got)
	}
	if c.Abort() {
		t.Error("Abort reported a mission after Run returned")
	}
}

func TestBoundedWaits(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*vehicletest.Link, *Options)
		want  error
		calls []string
	}{
		{
			name: "never armable",
			setup: func(l *vehicletest.Link, o *Options) {
				l.NotArmable = true
				o.ArmableTimeout = 20 * time.Millisecond
			},
			want:  ErrNotArmable,
			calls: []string{"SetMode(LAND)"},
		},
		{
			name: "never armed",
			setup: func(l *vehicletest.Link, o *Options) {
				l.ArmDelay = 1 << 30
				o.ArmTimeout = 20 * time.Millisecond
			},
			want:  ErrArmingTimeout,
			calls: []string{"SetMode(GUIDED)", "SetArmed(true)", "SetMode(LAND)"},
		},
		{
			name: "never climbs",
			setup: func(l *vehicletest.Link, o *Options) {
				l.ClimbPerRead = 0
				o.ClimbTimeout = 20 * time.Millisecond
			},
			want:  ErrClimbTimeout,
			calls: []string{"SetMode(GUIDED)", "SetArmed(true)", "Takeoff(10)", "SetMode(LAND)"},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			fake := vehicletest.New(0, 0)
			opts := fastOptions()
			tt.setup(fake, &opts)
			c := New(fake, WithOptions(opts))

			outcome, _ := c.Run(context.Background(), Request{Latitude: 1, Longitude: 1})
			if outcome.Result != ResultFailed || !errors.Is(outcome.Reason, tt.want) {
				t.Fatalf("outcome = %+v, want Failed with %v", outcome, tt.want)
			}
			if got := fake.Calls(); !reflect.DeepEqual(got, tt.calls) {
				t.Errorf("calls = %v, want %v", got, tt.calls)
			}
		})
	}
}

func TestAbortDuringHoverStillLands(t *testing.T) {
	fake := vehicletest.New(0, 0)
	opts := fastOptions()
	opts.Dwell = time.Minute
	c := New(fake, WithOptions(opts))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan Outcome, 1)
	go func() {
		o, _ := c.Run(ctx, Request{Latitude: 1, Longitude: 1})
		done <- o
	}()

	waitForPhase(t, c, PhaseHovering)
	cancel()

	select {
	case outcome := <-done:
		if outcome.Result != ResultAborted {
			t.Fatalf("result = %s, want Aborted", outcome.Result)
		}
		var pe *PhaseError
		if !errors.As(outcome.Reason, &pe) || pe.Phase != PhaseHovering {
			t.Errorf("reason = %v, want abort in Hovering", outcome.Reason)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("aborted mission did not return")
	}

	if got := lastCall(fake.Calls()); got != "SetMode(LAND)" {
		t.Errorf("last call = %s, want SetMode(LAND)", got)
	}
	if fake.State().Armed {
		t.Error("vehicle still armed")
	}
}

func TestLandingTimeout(t *testing.T) {
	fake := vehicletest.New(0, 0)
	fake.Fail = map[string]error{vehicle.OpGoto: vehicle.ErrRejected}
	fake.DisarmDelay = 1 << 30
	opts := fastOptions()
	opts.LandTimeout = 20 * time.Millisecond
	c := New(fake, WithOptions(opts))

	outcome, _ := c.Run(context.Background(), Request{Latitude: 1, Longitude: 1})
	if outcome.Result != ResultFailed {
		t.Fatalf("result = %s", outcome.Result)
	}
	if !errors.Is(outcome.Reason, vehicle.ErrRejected) {
		t.Errorf("reason = %v, want the originating error", outcome.Reason)
	}
	if !errors.Is(outcome.LandingErr, ErrLandingTimeout) {
		t.Errorf("landing err = %v, want ErrLandingTimeout", outcome.LandingErr)
	}
	if c.Status().Phase != PhaseIdle {
		t.Errorf("phase = %s, want Idle", c.Status().Phase)
	}
}

func TestInvalidRequest(t *testing.T) {
	fake := vehicletest.New(0, 0)
	c := New(fake, WithOptions(fastOptions()))

	for _, req := range []Request{
		{Latitude: 91, Longitude: 0},
		{Latitude: 0, Longitude: -181},
		{Latitude: 0, Longitude: 0, Altitude: -1},
	} {
		if _, err := c.Run(context.Background(), req); !errors.Is(err, ErrInvalidRequest) {
			t.Errorf("Run(%+v) err = %v, want ErrInvalidRequest", req, err)
		}
	}
	if calls := fake.Calls(); len(calls) != 0 {
		t.Errorf("calls = %v", calls)
	}
}

type recordingNotifier struct {
	mu       sync.Mutex
	phases   []Phase
	outcomes []Outcome
}

func (n *recordingNotifier) PhaseChanged(_ context.Context, ev PhaseEvent) {
	n.mu.Lock()
	n.phases = append(n.phases, ev.To)
	n.mu.Unlock()
}

func (n *recordingNotifier) MissionFinished(_ context.Context, _ Request, o Outcome) {
	n.mu.Lock()
	n.outcomes = append(n.outcomes, o)
	n.mu.Unlock()
}

func TestNotifierSeesEveryPhase(t *testing.T) {
	tests := []struct {
		name   string
		fail   map[string]error
		phases []Phase
		result Result
	}{
		{
			name: "completed",
			phases: []Phase{PhasePreArmCheck, PhaseArming, PhaseTakingOff, PhaseEnRoute,
				PhaseHovering, PhaseReturningToLaunch, PhaseCompleted},
			result: ResultCompleted,
		},
		{
			name:   "failed",
			fail:   map[string]error{vehicle.OpTakeoff: vehicle.ErrRejected},
			phases: []Phase{PhasePreArmCheck, PhaseArming, PhaseTakingOff, PhaseLanding, PhaseFailed},
			result: ResultFailed,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			fake := vehicletest.New(0, 0)
			fake.Fail = tt.fail
			n := &recordingNotifier{}
			c := New(fake, WithOptions(fastOptions()), WithNotifier(n))

			_, _ = c.Run(context.Background(), Request{Latitude: 1, Longitude: 1})

			if !reflect.DeepEqual(n.phases, tt.phases) {
				t.Errorf("phases = %v, want %v", n.phases, tt.phases)
			}
			if len(n.outcomes) != 1 || n.outcomes[0].Result != tt.result {
				t.Errorf("outcomes = %+v", n.outcomes)
			}
		})
	}
}

func TestStatusDuringMission(t *testing.T) {
	fake := vehicletest.New(5, 6)
	opts := fastOptions()
	opts.Dwell = time.Minute
	c := New(fake, WithOptions(opts))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.Run(context.Background(), Request{Latitude: 7, Longitude: 8})
	}()
	waitForPhase(t, c, PhaseHovering)

	st := c.Status()
	if !st.Active || st.MissionID == "" || st.Target == nil || *st.Target != (Request{Latitude: 7, Longitude: 8, Altitude: 10}) {
		t.Errorf("status = %+v", st)
	}
	if st.LastSnapshot == nil || st.LastSnapshot.Altitude != 10 {
		t.Errorf("last snapshot = %v", st.LastSnapshot)
	}

	c.Abort()
	<-done
}
