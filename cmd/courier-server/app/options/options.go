package options

import (
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	cliflag "k8s.io/component-base/cli/flag"

	"github.com/autopeer-io/skycourier/internal/courier"
	"github.com/autopeer-io/skycourier/pkg/app"
	"github.com/autopeer-io/skycourier/pkg/log"
	"github.com/autopeer-io/skycourier/pkg/options"
)

type ServerOptions struct {
	HttpOptions      *options.HttpOptions      `json:"http" mapstructure:"http"`
	GrpcOptions      *options.GrpcOptions      `json:"grpc" mapstructure:"grpc"`
	MqttOptions      *options.MqttOptions      `json:"mqtt" mapstructure:"mqtt"`
	LinkOptions      *options.LinkOptions      `json:"link" mapstructure:"link"`
	MissionOptions   *options.MissionOptions   `json:"mission" mapstructure:"mission"`
	TelemetryOptions *options.TelemetryOptions `json:"telemetry" mapstructure:"telemetry"`
	Log              *log.Options              `json:"log" mapstructure:"log"`
}

var _ app.NamedFlagSetOptions = (*ServerOptions)(nil)

func NewServerOptions() *ServerOptions {
	o := &ServerOptions{
		HttpOptions:      options.NewHttpOptions(),
		GrpcOptions:      options.NewGrpcOptions(),
		MqttOptions:      options.NewMqttOptions(),
		LinkOptions:      options.NewLinkOptions(),
		MissionOptions:   options.NewMissionOptions(),
		TelemetryOptions: options.NewTelemetryOptions(),
		Log:              log.NewOptions(),
	}

	return o
}

func (o *ServerOptions) Flags() cliflag.NamedFlagSets {
	fss := cliflag.NamedFlagSets{}
	o.HttpOptions.AddFlags(fss.FlagSet("http"))
	o.GrpcOptions.AddFlags(fss.FlagSet("grpc"))
	o.MqttOptions.AddFlags(fss.FlagSet("mqtt"))
	o.LinkOptions.AddFlags(fss.FlagSet("link"))
	o.MissionOptions.AddFlags(fss.FlagSet("mission"))
	o.TelemetryOptions.AddFlags(fss.FlagSet("telemetry"))
	o.Log.AddFlags(fss.FlagSet("log"))
	return fss
}

// Complete names the logger after the vehicle when no name was given.
func (o *ServerOptions) Complete() error {
	if o.Log.Name == "" {
		o.Log.Name = "courier." + o.LinkOptions.VehicleID
	}
	return nil
}

func (o *ServerOptions) Validate() error {
	errs := []error{}
	errs = append(errs, o.HttpOptions.Validate()...)
	if o.LinkOptions.Driver == options.LinkDriverGrpc {
		errs = append(errs, o.GrpcOptions.Validate()...)
	}
	errs = append(errs, o.MqttOptions.Validate()...)
	errs = append(errs, o.LinkOptions.Validate()...)
	errs = append(errs, o.MissionOptions.Validate()...)
	errs = append(errs, o.TelemetryOptions.Validate()...)
	errs = append(errs, o.Log.Validate()...)
	return utilerrors.NewAggregate(errs)
}

func (o *ServerOptions) Config() (*courier.Config, error) {
	return &courier.Config{
		HttpOptions:      o.HttpOptions,
		GrpcOptions:      o.GrpcOptions,
		MqttOptions:      o.MqttOptions,
		LinkOptions:      o.LinkOptions,
		MissionOptions:   o.MissionOptions,
		TelemetryOptions: o.TelemetryOptions,
	}, nil
}
