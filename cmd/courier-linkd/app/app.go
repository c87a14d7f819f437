package app

import (
	"fmt"

	genericapiserver "k8s.io/apiserver/pkg/server"

	"github.com/autopeer-io/skycourier/cmd/courier-linkd/app/options"
	"github.com/autopeer-io/skycourier/pkg/app"
	"github.com/autopeer-io/skycourier/pkg/log"
)

const (
	commandName = "courier-linkd"
	commandDesc = `The link daemon is the single owner of the vehicle link. It serves the
link to courier-server over gRPC and, with --mqtt.enabled, bridges it onto
the MQTT link topics.`
)

func NewApp() *app.App {
	opts := options.NewLinkdOptions()
	application := app.NewApp(
		commandName,
		"Launch a Skycourier vehicle link daemon",
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithDefaultValidArgs(),
		app.WithLogLevelReload(),
		app.WithRunFunc(run(opts)),
	)
	return application
}

func run(opts *options.LinkdOptions) app.RunFunc {
	return func() error {
		log.Init(opts.Log)
		ctx := genericapiserver.SetupSignalContext()

		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		daemon, err := cfg.NewLinkDaemon(ctx)
		if err != nil {
			return fmt.Errorf("failed to create link daemon: %w", err)
		}

		return daemon.Run(ctx)
	}
}
