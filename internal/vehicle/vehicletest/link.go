// Package vehicletest provides an in-memory vehicle.Link for tests. It moves
// one step per Snapshot read, so tests advance flight by polling rather than
// by sleeping.
package vehicletest

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/autopeer-io/skycourier/internal/vehicle"
)

// Link is a scripted vehicle. Configure the exported fields before use.
type Link struct {
	// ArmDelay is the number of reads after SetArmed(true) before Armed is
	// reported.
	ArmDelay int
	// DisarmDelay is the number of reads after SetMode(LAND) before the
	// vehicle reports it has landed and disarmed.
	DisarmDelay int
	// ClimbPerRead is the altitude gained per read while below the target.
	ClimbPerRead float64
	// NotArmable keeps Armable false forever.
	NotArmable bool

	// Fail makes the named operation (vehicle.Op*) return the error.
	Fail map[string]error
	// SnapshotErr, if set, is consulted on every read with its 1-based index.
	SnapshotErr func(n int) error

	mu          sync.Mutex
	state       vehicle.Snapshot
	target      float64
	armIn       int
	disarmIn    int
	reads       int
	calls       []string
	readsAtCall []int
}

var _ vehicle.Link = (*Link)(nil)

// New returns a vehicle on the ground at lat/lon in STABILIZE that arms on
// the first read after SetArmed and climbs one meter per read.
func New(lat, lon float64) *Link {
	return &Link{
		ArmDelay:     1,
		DisarmDelay:  1,
		ClimbPerRead: 1,
		state: vehicle.Snapshot{
			Latitude:  lat,
			Longitude: lon,
			Mode:      vehicle.ModeStabilize,
		},
	}
}

// Calls returns the commands issued so far, formatted like "Goto(10,20,10)".
func (l *Link) Calls() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

// ReadsBefore returns the number of Snapshot reads that happened before the
// i-th command.
func (l *Link) ReadsBefore(i int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.readsAtCall[i]
}

// Reads returns the number of Snapshot calls.
func (l *Link) Reads() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reads
}

// State returns the current state without counting as a read.
func (l *Link) State() vehicle.Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Link) Snapshot(ctx context.Context) (vehicle.Snapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.reads++
	if l.SnapshotErr != nil {
		if err := l.SnapshotErr(l.reads); err != nil {
			return vehicle.Snapshot{}, err
		}
	}
	if err := l.Fail[vehicle.OpSnapshot]; err != nil {
		return vehicle.Snapshot{}, err
	}

	l.step()
	return l.state, nil
}

// step advances the scripted flight by one read.
func (l *Link) step() {
	l.state.Armable = !l.NotArmable

	if l.armIn > 0 {
		l.armIn--
		if l.armIn == 0 {
			l.state.Armed = true
		}
	}

	switch {
	case l.state.Mode == vehicle.ModeLand:
		if l.disarmIn > 0 {
			l.disarmIn--
		}
		if l.disarmIn == 0 {
			l.state.Altitude = 0
			l.state.Armed = false
		}
	case l.state.Armed && l.state.Altitude < l.target:
		l.state.Altitude = min(l.state.Altitude+l.ClimbPerRead, l.target)
	}
}

func (l *Link) SetMode(ctx context.Context, mode vehicle.Mode) error {
	return l.command(vehicle.OpSetMode, fmt.Sprintf("SetMode(%s)", mode), func() {
		l.state.Mode = mode
		if mode == vehicle.ModeLand {
			l.disarmIn = l.DisarmDelay
		}
	})
}

func (l *Link) SetArmed(ctx context.Context, armed bool) error {
	return l.command(vehicle.OpSetArmed, fmt.Sprintf("SetArmed(%t)", armed), func() {
		if !armed {
			l.state.Armed = false
			return
		}
		l.armIn = l.ArmDelay
		if l.armIn == 0 {
			l.state.Armed = true
		}
	})
}

func (l *Link) Takeoff(ctx context.Context, altitude float64) error {
	return l.command(vehicle.OpTakeoff, fmt.Sprintf("Takeoff(%s)", num(altitude)), func() {
		l.target = altitude
	})
}

func (l *Link) Goto(ctx context.Context, lat, lon, altitude float64) error {
	return l.command(vehicle.OpGoto, fmt.Sprintf("Goto(%s,%s,%s)", num(lat), num(lon), num(altitude)), func() {
		l.state.Latitude, l.state.Longitude = lat, lon
		l.target = altitude
	})
}

func (l *Link) command(op, call string, apply func()) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.calls = append(l.calls, call)
	l.readsAtCall = append(l.readsAtCall, l.reads)
	if err := l.Fail[op]; err != nil {
		return err
	}
	apply()
	return nil
}

func num(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
