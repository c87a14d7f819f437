package app

import (
	"fmt"

	genericapiserver "k8s.io/apiserver/pkg/server"

	"github.com/autopeer-io/skycourier/cmd/courier-server/app/options"
	"github.com/autopeer-io/skycourier/pkg/app"
	"github.com/autopeer-io/skycourier/pkg/log"
)

const (
	commandName = "courier-server"
	commandDesc = `The courier server flies delivery missions. It owns the vehicle link
(or reaches it through courier-linkd), accepts mission requests on /track,
and streams the vehicle position to websocket and MQTT subscribers.`
)

func NewApp() *app.App {
	opts := options.NewServerOptions()
	application := app.NewApp(
		commandName,
		"Launch a Skycourier mission server",
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithDefaultValidArgs(),
		app.WithLogLevelReload(),
		app.WithRunFunc(run(opts)),
	)
	return application
}

func run(opts *options.ServerOptions) app.RunFunc {
	return func() error {
		log.Init(opts.Log)
		ctx := genericapiserver.SetupSignalContext()

		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		server, err := cfg.NewCourierServer(ctx)
		if err != nil {
			return fmt.Errorf("failed to create courier server: %w", err)
		}

		return server.Run(ctx)
	}
}
