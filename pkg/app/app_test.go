package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	cliflag "k8s.io/component-base/cli/flag"

	"github.com/autopeer-io/skycourier/pkg/log"
	"github.com/autopeer-io/skycourier/pkg/options"
)

type testOptions struct {
	HttpOptions      *options.HttpOptions      `mapstructure:"http"`
	TelemetryOptions *options.TelemetryOptions `mapstructure:"telemetry"`
	Log              *log.Options              `mapstructure:"log"`

	completed bool
}

func newTestOptions() *testOptions {
	return &testOptions{
		HttpOptions:      options.NewHttpOptions(),
		TelemetryOptions: options.NewTelemetryOptions(),
		Log:              log.NewOptions(),
	}
}

func (o *testOptions) Flags() cliflag.NamedFlagSets {
	fss := cliflag.NamedFlagSets{}
	o.HttpOptions.AddFlags(fss.FlagSet("http"))
	o.TelemetryOptions.AddFlags(fss.FlagSet("telemetry"))
	o.Log.AddFlags(fss.FlagSet("log"))
	return fss
}

func (o *testOptions) Complete() error {
	o.completed = true
	return nil
}

func (o *testOptions) Validate() error {
	errs := []error{}
	errs = append(errs, o.HttpOptions.Validate()...)
	errs = append(errs, o.TelemetryOptions.Validate()...)
	errs = append(errs, o.Log.Validate()...)
	return utilerrors.NewAggregate(errs)
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "courier.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func execute(a *App, args ...string) error {
	a.Command().SetArgs(args)
	return a.Command().Execute()
}

func TestConfigFileUnderFlags(t *testing.T) {
	path := writeConfig(t, `
http:
  addr: 127.0.0.1:9000
telemetry:
  interval: 250ms
log:
  level: debug
`)
	opts := newTestOptions()
	ran := false
	a := NewApp("courier-test", "test", WithOptions(opts), WithRunFunc(func() error {
		ran = true
		return nil
	}))

	if err := execute(a, "--config", path, "--log.level", "warn"); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if !ran || !opts.completed {
		t.Fatal("run func or Complete not called")
	}
	if opts.HttpOptions.Addr != "127.0.0.1:9000" {
		t.Errorf("http.addr = %s, want value from file", opts.HttpOptions.Addr)
	}
	if opts.TelemetryOptions.Interval != 250*time.Millisecond {
		t.Errorf("telemetry.interval = %v, want 250ms", opts.TelemetryOptions.Interval)
	}
	if opts.Log.Level != "warn" {
		t.Errorf("log.level = %s, want flag to win over file", opts.Log.Level)
	}
	if opts.TelemetryOptions.SendTimeout != 2*time.Second {
		t.Errorf("telemetry.send-timeout = %v, want default", opts.TelemetryOptions.SendTimeout)
	}
}

func TestValidationErrorStopsRun(t *testing.T) {
	opts := newTestOptions()
	a := NewApp("courier-test", "test", WithOptions(opts), WithRunFunc(func() error {
		t.Error("run func called with invalid options")
		return nil
	}))

	err := execute(a, "--http.addr", "nowhere", "--telemetry.interval", "0s")
	if err == nil {
		t.Fatal("Execute succeeded with invalid options")
	}
	for _, want := range []string{"nowhere", "--telemetry.interval"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestMissingConfigFile(t *testing.T) {
	a := NewApp("courier-test", "test", WithOptions(newTestOptions()), WithRunFunc(func() error { return nil }))
	if err := execute(a, "--config", filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("Execute succeeded with a missing config file")
	}
}

func TestDefaultValidArgs(t *testing.T) {
	a := NewApp("courier-test", "test", WithOptions(newTestOptions()), WithDefaultValidArgs(),
		WithRunFunc(func() error { return nil }))
	if err := execute(a, "extra"); err == nil {
		t.Fatal("positional argument accepted")
	}
}

func TestEnvOverridesDefault(t *testing.T) {
	t.Setenv("COURIER_TEST_HTTP_ADDR", "127.0.0.1:7000")
	opts := newTestOptions()
	a := NewApp("courier-test", "test", WithOptions(opts), WithRunFunc(func() error { return nil }))

	if err := execute(a); err != nil {
		t.Fatal(err)
	}
	if opts.HttpOptions.Addr != "127.0.0.1:7000" {
		t.Errorf("http.addr = %s, want value from environment", opts.HttpOptions.Addr)
	}
}

func ExampleNewApp() {
	opts := newTestOptions()
	a := NewApp("courier-example", "Example command",
		WithOptions(opts),
		WithDefaultValidArgs(),
		WithRunFunc(func() error {
			fmt.Println("listening on", opts.HttpOptions.Addr)
			return nil
		}),
	)
	a.Command().SetArgs([]string{"--http.addr", "127.0.0.1:8081"})
	_ = a.Command().Execute()
	// Output: listening on 127.0.0.1:8081
}
