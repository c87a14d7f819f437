package courier

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/autopeer-io/skycourier/pkg/log"
)

// Server defines the common interface for everything the manager runs.
type Server interface {
	Start(ctx context.Context) error
}

// Manager manages the lifecycle of the gateway, the broadcaster and any link
// client.
type Manager struct {
	servers []Server
}

func NewManager(servers ...Server) *Manager {
	return &Manager{servers: servers}
}

// Start launches all servers in parallel and waits for termination. The
// first failure stops the rest.
func (m *Manager) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, srv := range m.servers {
		srv := srv
		g.Go(func() error {
			return srv.Start(ctx)
		})
	}

	log.Info("All servers starting...", "count", len(m.servers))
	return g.Wait()
}
