package mqttlink

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	clocktesting "k8s.io/utils/clock/testing"

	"github.com/autopeer-io/skycourier/internal/vehicle"
	"github.com/autopeer-io/skycourier/internal/vehicle/vehicletest"
	"github.com/autopeer-io/skycourier/pkg/mqtt/mqtttest"
)

const root = "skycourier/test"

func startPair(t *testing.T, fake *vehicletest.Link) *Link {
	t.Helper()
	broker := mqtttest.NewBroker()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	bridge := NewBridge(broker.NewClient(), fake, BridgeOptions{
		VehicleID:     "uav-7",
		TopicRoot:     root,
		StateInterval: 10 * time.Millisecond,
	})
	go func() { _ = bridge.Start(ctx) }()

	link, err := Connect(ctx, broker.NewClient(), Options{
		VehicleID:      "uav-7",
		TopicRoot:      root,
		CommandTimeout: time.Second,
		StaleAfter:     time.Second,
	})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return link
}

func awaitSnapshot(t *testing.T, link *Link) vehicle.Snapshot {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		snap, err := link.Snapshot(context.Background())
		if err == nil {
			return snap
		}
		if time.Now().After(deadline) {
			t.Fatalf("no snapshot: %v", err)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestCommandsRoundTrip(t *testing.T) {
	fake := vehicletest.New(1, 2)
	link := startPair(t, fake)
	ctx := context.Background()

	// The bridge subscribes asynchronously; the first state message proves
	// it is running.
	if snap := awaitSnapshot(t, link); snap.Latitude != 1 || snap.Longitude != 2 {
		t.Fatalf("snapshot = %v", snap)
	}

	steps := []func() error{
		func() error { return link.SetMode(ctx, vehicle.ModeGuided) },
		func() error { return link.SetArmed(ctx, true) },
		func() error { return link.Takeoff(ctx, 10) },
		func() error { return link.Goto(ctx, 3, 4, 10) },
	}
	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}

	want := []string{"SetMode(GUIDED)", "SetArmed(true)", "Takeoff(10)", "Goto(3,4,10)"}
	if got := fake.Calls(); !reflect.DeepEqual(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
}

func TestRejectedCommand(t *testing.T) {
	fake := vehicletest.New(0, 0)
	fake.Fail = map[string]error{vehicle.OpTakeoff: vehicle.ErrRejected}
	link := startPair(t, fake)
	awaitSnapshot(t, link)

	if err := link.Takeoff(context.Background(), 10); !errors.Is(err, vehicle.ErrRejected) {
		t.Fatalf("err = %v, want ErrRejected", err)
	}
	if err := link.Goto(context.Background(), 0, 0, 10); err != nil {
		t.Fatalf("Goto: %v", err)
	}
}

func TestCommandTimeoutWithoutBridge(t *testing.T) {
	broker := mqtttest.NewBroker()
	link, err := Connect(context.Background(), broker.NewClient(), Options{
		VehicleID:      "uav-7",
		TopicRoot:      root,
		CommandTimeout: 20 * time.Millisecond,
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := link.SetMode(context.Background(), vehicle.ModeGuided); !errors.Is(err, vehicle.ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	if len(broker.Messages(root+"/link/command/uav-7")) != 1 {
		t.Error("command not published")
	}
}

func TestPublishFailure(t *testing.T) {
	broker := mqtttest.NewBroker()
	client := broker.NewClient()
	link, err := Connect(context.Background(), client, Options{VehicleID: "uav-7", TopicRoot: root})
	if err != nil {
		t.Fatal(err)
	}
	client.SetPublishErr(errors.New("offline"))

	if err := link.SetArmed(context.Background(), true); !errors.Is(err, vehicle.ErrCommunication) {
		t.Fatalf("err = %v, want ErrCommunication", err)
	}
}

func TestSnapshotStaleness(t *testing.T) {
	clk := clocktesting.NewFakePassiveClock(time.Unix(0, 0))
	link := &Link{opts: Options{StaleAfter: time.Second, Clock: clk}}
	ctx := context.Background()

	if _, err := link.Snapshot(ctx); !errors.Is(err, vehicle.ErrCommunication) {
		t.Fatalf("before any state err = %v", err)
	}

	link.handleState(ctx, "t", []byte(`{"lat":1,"lon":2,"alt":3,"armed":true,"mode":"GUIDED","armable":true}`))
	snap, err := link.Snapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := vehicle.Snapshot{Latitude: 1, Longitude: 2, Altitude: 3, Armed: true, Mode: vehicle.ModeGuided, Armable: true}
	if snap != want {
		t.Fatalf("snapshot = %v, want %v", snap, want)
	}

	clk.SetTime(time.Unix(2, 0))
	if _, err := link.Snapshot(ctx); !errors.Is(err, vehicle.ErrCommunication) {
		t.Fatalf("stale err = %v, want ErrCommunication", err)
	}
}

func TestDecodeCommand(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantErr bool
	}{
		{"set mode", `{"id":"a","op":"set_mode","mode":"RTL"}`, false},
		{"goto", `{"id":"a","op":"goto","lat":1,"lon":2,"alt":3}`, false},
		{"goto at zero", `{"id":"a","op":"goto","lat":0,"lon":0,"alt":10}`, false},
		{"missing id", `{"op":"set_mode","mode":"RTL"}`, true},
		{"missing armed", `{"id":"a","op":"set_armed"}`, true},
		{"goto without lon", `{"id":"a","op":"goto","lat":1,"alt":3}`, true},
		{"unknown op", `{"id":"a","op":"flip"}`, true},
		{"not json", `{`, true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeCommand([]byte(tt.payload))
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
