package linkd

import (
	"context"
	"net"
	"time"

	"github.com/autopeer-io/skycourier/internal/courier"
	"github.com/autopeer-io/skycourier/internal/vehicle"
	"github.com/autopeer-io/skycourier/pkg/log"
	"github.com/autopeer-io/skycourier/pkg/mqtt"
)

// LinkDaemon is the main application struct of courier-linkd. It is the only
// process that talks to the flight controller.
type LinkDaemon struct {
	vehicleID     string
	serverManager *courier.Manager
	shared        *vehicle.Shared
	grpcServer    *GrpcServer

	mqttClient  mqtt.Client
	statusTopic string
}

// Link returns the link the daemon serves.
func (d *LinkDaemon) Link() vehicle.Link { return d.shared.Commander() }

// Addr returns the bound gRPC address once Run is listening.
func (d *LinkDaemon) Addr(ctx context.Context) (net.Addr, error) { return d.grpcServer.Addr(ctx) }

func (d *LinkDaemon) Run(ctx context.Context) error {
	log.Info("Starting link daemon", "vehicle", d.vehicleID)
	d.publishStatus(ctx, courier.StatusOnline)

	err := d.serverManager.Start(ctx)

	if cerr := d.shared.Close(); cerr != nil {
		log.Error(cerr, "Failed to close vehicle link")
	}
	d.publishStatus(ctx, courier.StatusOffline)
	if d.mqttClient != nil {
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		d.mqttClient.Disconnect(dctx)
	}

	log.Info("Link daemon stopped")
	return err
}

func (d *LinkDaemon) publishStatus(ctx context.Context, status string) {
	if d.mqttClient == nil {
		return
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := d.mqttClient.Publish(pctx, d.statusTopic, 1, true, []byte(status)); err != nil {
		log.Warn("Failed to publish status", "status", status, "error", err.Error())
	}
}
