// Package app implements courierctl, the operator client of courier-server.
package app

import (
	"time"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	server  string
	timeout time.Duration
}

func NewCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "courierctl",
		Short:         "Operate a Skycourier mission server",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	fs := cmd.PersistentFlags()
	fs.StringVarP(&opts.server, "server", "s", "http://127.0.0.1:8080", "Base URL of courier-server.")
	fs.DurationVar(&opts.timeout, "timeout", 10*time.Second, "Deadline of status and abort requests.")

	cmd.AddCommand(newMissionCommand(opts), newTelemetryCommand(opts))
	return cmd
}

func (o *rootOptions) client() *client {
	return newClient(o.server)
}
