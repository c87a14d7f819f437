package options

import (
	"fmt"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	cliflag "k8s.io/component-base/cli/flag"

	"github.com/autopeer-io/skycourier/internal/linkd"
	"github.com/autopeer-io/skycourier/pkg/app"
	"github.com/autopeer-io/skycourier/pkg/log"
	"github.com/autopeer-io/skycourier/pkg/options"
)

type LinkdOptions struct {
	GrpcOptions *options.GrpcOptions `json:"grpc" mapstructure:"grpc"`
	MqttOptions *options.MqttOptions `json:"mqtt" mapstructure:"mqtt"`
	LinkOptions *options.LinkOptions `json:"link" mapstructure:"link"`
	Log         *log.Options         `json:"log" mapstructure:"log"`
}

var _ app.NamedFlagSetOptions = (*LinkdOptions)(nil)

func NewLinkdOptions() *LinkdOptions {
	o := &LinkdOptions{
		GrpcOptions: options.NewGrpcOptions(),
		MqttOptions: options.NewMqttOptions(),
		LinkOptions: options.NewLinkOptions(),
		Log:         log.NewOptions(),
	}

	return o
}

func (o *LinkdOptions) Flags() cliflag.NamedFlagSets {
	fss := cliflag.NamedFlagSets{}
	o.GrpcOptions.AddFlags(fss.FlagSet("grpc"))
	o.MqttOptions.AddFlags(fss.FlagSet("mqtt"))
	o.LinkOptions.AddFlags(fss.FlagSet("link"))
	o.Log.AddFlags(fss.FlagSet("log"))
	return fss
}

func (o *LinkdOptions) Complete() error {
	if o.Log.Name == "" {
		o.Log.Name = "linkd." + o.LinkOptions.VehicleID
	}
	return nil
}

func (o *LinkdOptions) Validate() error {
	errs := []error{}
	errs = append(errs, o.GrpcOptions.Validate()...)
	errs = append(errs, o.MqttOptions.Validate()...)
	errs = append(errs, o.LinkOptions.Validate()...)
	if o.LinkOptions.Driver != options.LinkDriverSim {
		errs = append(errs, fmt.Errorf("--link.driver must be sim for the link daemon, got %q", o.LinkOptions.Driver))
	}
	errs = append(errs, o.Log.Validate()...)
	return utilerrors.NewAggregate(errs)
}

func (o *LinkdOptions) Config() (*linkd.Config, error) {
	return &linkd.Config{
		GrpcOptions: o.GrpcOptions,
		MqttOptions: o.MqttOptions,
		LinkOptions: o.LinkOptions,
	}, nil
}
