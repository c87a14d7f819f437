package options

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*HttpOptions)(nil)

// HttpOptions contains configuration items related to the Request Gateway.
type HttpOptions struct {
	// Network with server network.
	Network string `json:"network" mapstructure:"network"`

	// Address with server address.
	Addr string `json:"addr" mapstructure:"addr"`

	// Timeout bounds reading request headers and writing non-mission responses.
	// The mission trigger is exempt: it blocks for the whole flight.
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// StaticDir holds index.html, track.html and any assets served under /html/.
	StaticDir string `json:"static-dir" mapstructure:"static-dir"`

	// AllowedOrigins lists origins allowed to open the telemetry websocket.
	// Empty means same-origin only, "*" allows any origin.
	AllowedOrigins []string `json:"allowed-origins" mapstructure:"allowed-origins"`
}

// NewHttpOptions creates a HttpOptions object with default parameters.
func NewHttpOptions() *HttpOptions {
	return &HttpOptions{
		Network:   "tcp",
		Addr:      "0.0.0.0:8080",
		Timeout:   30 * time.Second,
		StaticDir: "web/html",
	}
}

// Validate is used to parse and validate the parameters entered by the user at
// the command line when the program starts.
func (o *HttpOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errors := []error{}

	if err := ValidateAddress(o.Addr); err != nil {
		errors = append(errors, err)
	}
	if o.Timeout <= 0 {
		errors = append(errors, fmt.Errorf("--http.timeout must be positive"))
	}

	return errors
}

// AddFlags adds flags related to the HTTP gateway to the specified FlagSet.
func (o *HttpOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Network, "http.network", o.Network, "Specify the network for the HTTP server.")
	fs.StringVar(&o.Addr, "http.addr", o.Addr, "Specify the HTTP server bind address and port.")
	fs.DurationVar(&o.Timeout, "http.timeout", o.Timeout, "Timeout for reading requests and writing non-mission responses.")
	fs.StringVar(&o.StaticDir, "http.static-dir", o.StaticDir, "Directory with index.html, track.html and static assets.")
	fs.StringSliceVar(&o.AllowedOrigins, "http.allowed-origins", o.AllowedOrigins, "Origins allowed to open the telemetry websocket ('*' for any).")
}
