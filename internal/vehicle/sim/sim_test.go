package sim

import (
	"context"
	"errors"
	"testing"
	"time"

	clocktesting "k8s.io/utils/clock/testing"

	"github.com/autopeer-io/skycourier/internal/vehicle"
)

func newTestVehicle() (*Vehicle, *clocktesting.FakeClock) {
	clk := clocktesting.NewFakeClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	v := New(Config{
		HomeLatitude:  10,
		HomeLongitude: 20,
		ClimbRate:     2,
		Speed:         10,
		ArmableAfter:  time.Second,
		Tick:          100 * time.Millisecond,
		Clock:         clk,
	})
	return v, clk
}

func snapshot(t *testing.T, v *Vehicle) vehicle.Snapshot {
	t.Helper()
	s, err := v.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	return s
}

func TestArmableAfterBoot(t *testing.T) {
	v, clk := newTestVehicle()
	ctx := context.Background()

	if snapshot(t, v).Armable {
		t.Fatal("armable at boot")
	}
	if err := v.SetArmed(ctx, true); !errors.Is(err, vehicle.ErrRejected) {
		t.Fatalf("SetArmed before armable err = %v, want ErrRejected", err)
	}

	clk.Step(time.Second)
	if !snapshot(t, v).Armable {
		t.Fatal("not armable after ArmableAfter")
	}
	if err := v.SetArmed(ctx, true); err != nil {
		t.Fatalf("SetArmed: %v", err)
	}
	if !snapshot(t, v).Armed {
		t.Error("not armed")
	}
}

func TestTakeoffRequiresGuided(t *testing.T) {
	v, clk := newTestVehicle()
	ctx := context.Background()
	clk.Step(time.Second)
	_ = v.SetArmed(ctx, true)

	if err := v.Takeoff(ctx, 10); !errors.Is(err, vehicle.ErrRejected) {
		t.Fatalf("Takeoff in STABILIZE err = %v, want ErrRejected", err)
	}
}

func TestFlightProfile(t *testing.T) {
	v, clk := newTestVehicle()
	ctx := context.Background()
	clk.Step(time.Second)

	for _, err := range []error{
		v.SetMode(ctx, vehicle.ModeGuided),
		v.SetArmed(ctx, true),
		v.Takeoff(ctx, 10),
	} {
		if err != nil {
			t.Fatal(err)
		}
	}

	clk.Step(2 * time.Second)
	if alt := snapshot(t, v).Altitude; alt < 3.9 || alt > 4.1 {
		t.Fatalf("altitude after 2s at 2m/s = %.2f, want 4", alt)
	}
	clk.Step(10 * time.Second)
	if alt := snapshot(t, v).Altitude; alt != 10 {
		t.Fatalf("altitude = %.2f, want 10", alt)
	}

	// About 111 m north.
	if err := v.Goto(ctx, 10.001, 20, 10); err != nil {
		t.Fatal(err)
	}
	clk.Step(5 * time.Second)
	mid := snapshot(t, v)
	if mid.Latitude <= 10 || mid.Latitude >= 10.001 {
		t.Fatalf("latitude mid-flight = %f", mid.Latitude)
	}
	clk.Step(20 * time.Second)
	if s := snapshot(t, v); s.Latitude != 10.001 {
		t.Fatalf("latitude after arrival = %f", s.Latitude)
	}

	if err := v.SetMode(ctx, vehicle.ModeRTL); err != nil {
		t.Fatal(err)
	}
	clk.Step(30 * time.Second)
	s := snapshot(t, v)
	if s.Latitude != 10 || s.Longitude != 20 || s.Altitude != 0 || s.Armed {
		t.Fatalf("after RTL: %v", s)
	}
}

func TestLandDisarms(t *testing.T) {
	v, clk := newTestVehicle()
	ctx := context.Background()
	clk.Step(time.Second)
	_ = v.SetMode(ctx, vehicle.ModeGuided)
	_ = v.SetArmed(ctx, true)
	_ = v.Takeoff(ctx, 6)
	clk.Step(5 * time.Second)

	if err := v.SetArmed(ctx, false); !errors.Is(err, vehicle.ErrRejected) {
		t.Fatalf("disarm in flight err = %v, want ErrRejected", err)
	}
	if err := v.SetMode(ctx, vehicle.ModeLand); err != nil {
		t.Fatal(err)
	}
	clk.Step(4 * time.Second)
	if s := snapshot(t, v); s.Armed || s.Altitude != 0 {
		t.Fatalf("after LAND: %v", s)
	}
}

func TestInjectFaultIsOneShot(t *testing.T) {
	v, _ := newTestVehicle()
	ctx := context.Background()
	v.InjectFault(vehicle.OpSetMode, vehicle.ErrTimeout)

	if err := v.SetMode(ctx, vehicle.ModeGuided); !errors.Is(err, vehicle.ErrTimeout) {
		t.Fatalf("first SetMode err = %v", err)
	}
	if err := v.SetMode(ctx, vehicle.ModeGuided); err != nil {
		t.Fatalf("second SetMode err = %v", err)
	}
}

func TestUnknownModeRejected(t *testing.T) {
	v, _ := newTestVehicle()
	if err := v.SetMode(context.Background(), vehicle.Mode("AUTO")); !errors.Is(err, vehicle.ErrRejected) {
		t.Fatalf("err = %v, want ErrRejected", err)
	}
}

func TestClosed(t *testing.T) {
	v, _ := newTestVehicle()
	_ = v.Close()
	if _, err := v.Snapshot(context.Background()); !errors.Is(err, vehicle.ErrClosed) {
		t.Fatalf("err = %v, want ErrClosed", err)
	}
}
