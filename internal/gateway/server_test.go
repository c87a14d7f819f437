package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/autopeer-io/skycourier/internal/mission"
	"github.com/autopeer-io/skycourier/internal/telemetry"
	"github.com/autopeer-io/skycourier/internal/vehicle"
	"github.com/autopeer-io/skycourier/internal/vehicle/vehicletest"
	"github.com/autopeer-io/skycourier/pkg/options"
)

func testOptions(t *testing.T) *options.HttpOptions {
	t.Helper()
	dir := t.TempDir()
	for name, body := range map[string]string{
		"index.html": "<h1>courier</h1>",
		"track.html": "<h1>tracker</h1>",
		"app.js":     "console.log('ok')",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	opts := options.NewHttpOptions()
	opts.StaticDir = dir
	opts.Timeout = 2 * time.Second
	return opts
}

func fastMissions(link vehicle.Link) *mission.Controller {
	return mission.New(link, mission.WithOptions(mission.Options{
		CruiseAltitude:  10,
		PollInterval:    time.Millisecond,
		Dwell:           time.Millisecond,
		ArmableTimeout:  time.Second,
		ArmTimeout:      time.Second,
		ClimbTimeout:    time.Second,
		NavigateTimeout: time.Second,
		LandTimeout:     time.Second,
	}))
}

type fakeTelemetry struct {
	mu   sync.Mutex
	last time.Time
	subs map[string]telemetry.Subscriber
}

func (f *fakeTelemetry) Subscribe(sub telemetry.Subscriber) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subs == nil {
		f.subs = map[string]telemetry.Subscriber{}
	}
	f.subs[sub.ID()] = sub
}

func (f *fakeTelemetry) Unsubscribe(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.subs[id]
	delete(f.subs, id)
	return ok
}

func (f *fakeTelemetry) LastFrameAt() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

func (f *fakeTelemetry) Interval() time.Duration { return time.Second }

type busyMissions struct{}

func (busyMissions) Run(context.Context, mission.Request) (mission.Outcome, error) {
	return mission.Outcome{}, mission.ErrMissionInProgress
}
func (busyMissions) Abort() bool            { return true }
func (busyMissions) Status() mission.Status { return mission.Status{Phase: mission.PhaseHovering, Active: true} }

func do(t *testing.T, h http.Handler, method, target string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeTrack(t *testing.T, rec *httptest.ResponseRecorder) TrackResponse {
	t.Helper()
	var resp TrackResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return resp
}

func TestTrackCompleted(t *testing.T) {
	link := vehicletest.New(0, 0)
	s := NewServer(testOptions(t), fastMissions(link), &fakeTelemetry{})

	rec := do(t, s.Handler(), http.MethodGet, "/track?lat=10&lon=20", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d, body %s", rec.Code, rec.Body)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `{"status":"Mission completed"}` {
		t.Errorf("body = %s", got)
	}
	if calls := link.Calls(); len(calls) != 5 || calls[3] != "Goto(10,20,10)" {
		t.Errorf("calls = %v", calls)
	}
}

func TestTrackPostForm(t *testing.T) {
	link := vehicletest.New(0, 0)
	s := NewServer(testOptions(t), fastMissions(link), &fakeTelemetry{})

	form := url.Values{"lat": {"-33.5"}, "lon": {"151.25"}, "alt": {"20"}}
	// alt is not an input; the mission flies at the cruise altitude.
	rec := do(t, s.Handler(), http.MethodPost, "/track", strings.NewReader(form.Encode()))

	if rec.Code != http.StatusOK || decodeTrack(t, rec).Status != statusCompleted {
		t.Fatalf("code = %d, body %s", rec.Code, rec.Body)
	}
	if calls := link.Calls(); calls[2] != "Takeoff(10)" || calls[3] != "Goto(-33.5,151.25,10)" {
		t.Errorf("calls = %v", calls)
	}
}

func TestTrackFailedMission(t *testing.T) {
	link := vehicletest.New(0, 0)
	link.Fail = map[string]error{vehicle.OpGoto: vehicle.ErrRejected}
	s := NewServer(testOptions(t), fastMissions(vehicle.NewShared(link, vehicle.SharedOptions{})), &fakeTelemetry{})

	rec := do(t, s.Handler(), http.MethodGet, "/track?lat=10&lon=20", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	resp := decodeTrack(t, rec)
	if resp.Status != statusError || !strings.Contains(resp.Error, "vehicle link goto") {
		t.Errorf("response = %+v", resp)
	}
}

func TestTrackRejectsBadInput(t *testing.T) {
	s := NewServer(testOptions(t), fastMissions(vehicletest.New(0, 0)), &fakeTelemetry{})

	for _, target := range []string{
		"/track",
		"/track?lat=10",
		"/track?lat=abc&lon=20",
		"/track?lat=NaN&lon=20",
		"/track?lat=91&lon=20",
		"/track?lat=10&lon=",
	} {
		rec := do(t, s.Handler(), http.MethodGet, target, nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: code = %d, want 400", target, rec.Code)
			continue
		}
		if resp := decodeTrack(t, rec); resp.Status != statusError || resp.Error == "" {
			t.Errorf("%s: response = %+v", target, resp)
		}
	}
}

func TestTrackBusy(t *testing.T) {
	s := NewServer(testOptions(t), busyMissions{}, &fakeTelemetry{})

	rec := do(t, s.Handler(), http.MethodGet, "/track?lat=1&lon=2", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("code = %d, want 409", rec.Code)
	}
	if resp := decodeTrack(t, rec); resp.Status != statusError {
		t.Errorf("response = %+v", resp)
	}
}

func TestMissionStatusAndAbort(t *testing.T) {
	s := NewServer(testOptions(t), fastMissions(vehicletest.New(0, 0)), &fakeTelemetry{})

	rec := do(t, s.Handler(), http.MethodGet, "/mission", nil)
	var st mission.Status
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil || st.Phase != mission.PhaseIdle || st.Active {
		t.Fatalf("status = %+v err %v", st, err)
	}

	if rec := do(t, s.Handler(), http.MethodPost, "/mission/abort", nil); rec.Code != http.StatusConflict {
		t.Errorf("abort while idle: code = %d, want 409", rec.Code)
	}

	busy := NewServer(testOptions(t), busyMissions{}, &fakeTelemetry{})
	if rec := do(t, busy.Handler(), http.MethodPost, "/mission/abort", nil); rec.Code != http.StatusAccepted {
		t.Errorf("abort in flight: code = %d, want 202", rec.Code)
	}
}

func TestStaticPages(t *testing.T) {
	s := NewServer(testOptions(t), busyMissions{}, &fakeTelemetry{})

	tests := map[string]string{
		"/":            "<h1>courier</h1>",
		"/tracker":     "<h1>tracker</h1>",
		"/html/app.js": "console.log('ok')",
	}
	for path, want := range tests {
		rec := do(t, s.Handler(), http.MethodGet, path, nil)
		if rec.Code != http.StatusOK || rec.Body.String() != want {
			t.Errorf("GET %s = %d %q, want %q", path, rec.Code, rec.Body, want)
		}
	}
}

func TestProbes(t *testing.T) {
	tel := &fakeTelemetry{}
	s := NewServer(testOptions(t), busyMissions{}, tel)

	if rec := do(t, s.Handler(), http.MethodGet, "/healthz", nil); rec.Code != http.StatusOK {
		t.Errorf("healthz = %d", rec.Code)
	}
	if rec := do(t, s.Handler(), http.MethodGet, "/readyz", nil); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz before any read = %d, want 503", rec.Code)
	}

	tel.mu.Lock()
	tel.last = time.Now()
	tel.mu.Unlock()
	if rec := do(t, s.Handler(), http.MethodGet, "/readyz", nil); rec.Code != http.StatusOK {
		t.Errorf("readyz after a read = %d, want 200", rec.Code)
	}

	tel.mu.Lock()
	tel.last = time.Now().Add(-readyFrames * 2 * time.Second)
	tel.mu.Unlock()
	if rec := do(t, s.Handler(), http.MethodGet, "/readyz", nil); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz with a stale read = %d, want 503", rec.Code)
	}

	rec := do(t, s.Handler(), http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "skycourier_mission_active") {
		t.Errorf("metrics = %d", rec.Code)
	}
}

func TestTelemetryWebsocket(t *testing.T) {
	b := telemetry.NewBroadcaster(vehicletest.New(10, 20), telemetry.WithInterval(5*time.Millisecond))
	s := NewServer(testOptions(t), busyMissions{}, b)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = b.Run(ctx) }()

	for _, path := range []string{"/ws", "/telemetry"} {
		conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+path, nil)
		if err != nil {
			t.Fatalf("dial %s: %v", path, err)
		}
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

		var frame telemetry.Frame
		if err := conn.ReadJSON(&frame); err != nil {
			t.Fatalf("%s: read: %v", path, err)
		}
		if frame.Latitude != 10 || frame.Longitude != 20 {
			t.Errorf("%s: frame = %+v", path, frame)
		}
		conn.Close()
	}
}

func TestWebsocketOrigin(t *testing.T) {
	opts := testOptions(t)
	opts.AllowedOrigins = []string{"https://ops.example.com"}
	s := NewServer(opts, busyMissions{}, &fakeTelemetry{})

	tests := []struct {
		origin, host string
		want         bool
	}{
		{"", "courier:8080", true},
		{"http://courier:8080", "courier:8080", true},
		{"https://ops.example.com", "courier:8080", true},
		{"https://evil.example.com", "courier:8080", false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		r.Host = tt.host
		if tt.origin != "" {
			r.Header.Set("Origin", tt.origin)
		}
		if got := s.checkOrigin(r); got != tt.want {
			t.Errorf("checkOrigin(%q) = %v, want %v", tt.origin, got, tt.want)
		}
	}
}
