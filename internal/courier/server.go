package courier

import (
	"context"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/autopeer-io/skycourier/internal/mission"
	"github.com/autopeer-io/skycourier/internal/vehicle"
	"github.com/autopeer-io/skycourier/pkg/log"
	"github.com/autopeer-io/skycourier/pkg/mqtt"
)

// Retained payloads of the status topic.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// CourierServer is the main application struct of courier-server.
type CourierServer struct {
	vehicleID     string
	serverManager *Manager
	shared        *vehicle.Shared
	controller    *mission.Controller
	landTimeout   time.Duration

	mqttClient  mqtt.Client
	statusTopic string
}

// Controller returns the mission controller.
func (s *CourierServer) Controller() *mission.Controller { return s.controller }

// Run serves until ctx is done. A mission in flight at shutdown is aborted
// by the gateway and given LandTimeout to land before the link closes.
func (s *CourierServer) Run(ctx context.Context) error {
	log.Info("Starting courier server", "vehicle", s.vehicleID)
	s.publishStatus(ctx, StatusOnline)

	err := s.serverManager.Start(ctx)

	s.waitForLanding()
	if cerr := s.shared.Close(); cerr != nil {
		log.Error(cerr, "Failed to close vehicle link")
	}
	s.publishStatus(ctx, StatusOffline)
	s.disconnect(ctx)

	log.Info("Courier server stopped")
	return err
}

func (s *CourierServer) waitForLanding() {
	if !s.controller.Status().Active {
		return
	}
	log.Info("Waiting for the aborted mission to land", "timeout", s.landTimeout)
	err := wait.PollUntilContextTimeout(context.Background(), 100*time.Millisecond, s.landTimeout, true,
		func(context.Context) (bool, error) {
			return !s.controller.Status().Active, nil
		})
	if err != nil {
		log.Warn("Mission still active at shutdown", "phase", string(s.controller.Status().Phase))
	}
}

func (s *CourierServer) publishStatus(ctx context.Context, status string) {
	if s.mqttClient == nil {
		return
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := s.mqttClient.Publish(pctx, s.statusTopic, 1, true, []byte(status)); err != nil {
		log.Warn("Failed to publish status", "status", status, "error", err.Error())
	}
}

func (s *CourierServer) disconnect(ctx context.Context) {
	if s.mqttClient == nil {
		return
	}
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	s.mqttClient.Disconnect(dctx)
}
