// Package gateway is the HTTP front of the courier: the mission trigger, the
// tracker pages, the telemetry websocket and the probes.
package gateway

import (
	"context"
	"errors"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/autopeer-io/skycourier/internal/mission"
	"github.com/autopeer-io/skycourier/internal/pkg/metrics"
	"github.com/autopeer-io/skycourier/internal/telemetry"
	"github.com/autopeer-io/skycourier/pkg/log"
	"github.com/autopeer-io/skycourier/pkg/options"
)

// Missions is the part of the mission controller the gateway drives.
type Missions interface {
	Run(ctx context.Context, req mission.Request) (mission.Outcome, error)
	Abort() bool
	Status() mission.Status
}

// Telemetry is the part of the broadcaster the gateway drives.
type Telemetry interface {
	Subscribe(sub telemetry.Subscriber)
	Unsubscribe(id string) bool
	LastFrameAt() time.Time
	Interval() time.Duration
}

// readyFrames is how many telemetry intervals may pass without a successful
// read before the process reports not ready.
const readyFrames = 3

type Server struct {
	server  *http.Server
	options *options.HttpOptions

	missions  Missions
	telemetry Telemetry
	upgrader  websocket.Upgrader
	logger    log.Logger

	// missionCtx outlives individual requests so a closed browser tab does
	// not abort a flight. It is cancelled when the server stops.
	missionCtx context.Context
}

func NewServer(opts *options.HttpOptions, missions Missions, tel Telemetry) *Server {
	s := &Server{
		options:    opts,
		missions:   missions,
		telemetry:  tel,
		logger:     log.WithName("gateway"),
		missionCtx: context.Background(),
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: s.checkOrigin}

	s.server = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: opts.Timeout,
	}
	return s
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.server.Handler }

func (s *Server) routes() http.Handler {
	r := mux.NewRouter()
	r.Use(s.logRequests)

	r.HandleFunc("/track", s.handleTrack).Methods(http.MethodGet, http.MethodPost)

	api := r.NewRoute().Subrouter()
	api.Use(s.withTimeout)
	api.HandleFunc("/mission", s.handleMissionStatus).Methods(http.MethodGet)
	api.HandleFunc("/mission/abort", s.handleMissionAbort).Methods(http.MethodPost)
	api.HandleFunc("/healthz", s.handleHealthz)
	api.HandleFunc("/readyz", s.handleReadyz)
	api.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	r.HandleFunc("/ws", s.handleTelemetry)
	r.HandleFunc("/telemetry", s.handleTelemetry)

	r.HandleFunc("/", s.servePage("index.html")).Methods(http.MethodGet)
	r.HandleFunc("/tracker", s.servePage("track.html")).Methods(http.MethodGet)
	r.PathPrefix("/html/").Handler(http.StripPrefix("/html/", http.FileServer(http.Dir(s.options.StaticDir))))

	return r
}

// Start serves until ctx is done. Missions started through /track run on
// ctx, so stopping the server aborts them and they land.
func (s *Server) Start(ctx context.Context) error {
	s.missionCtx = ctx
	s.logger.Info("Starting HTTP gateway", "addr", s.server.Addr)

	network := s.options.Network
	if network == "" {
		network = "tcp"
	}
	lis, err := net.Listen(network, s.server.Addr)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return nil
	}
}

func (s *Server) servePage(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, filepath.Join(s.options.StaticDir, name))
	}
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.options.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	// same-origin
	host := strings.TrimPrefix(strings.TrimPrefix(origin, "https://"), "http://")
	return strings.EqualFold(host, r.Host)
}

func (s *Server) withTimeout(next http.Handler) http.Handler {
	return http.TimeoutHandler(next, s.options.Timeout, "request timed out")
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("HTTP request", "method", r.Method, "path", r.URL.Path, "remote", remoteIP(r), "duration", time.Since(start))
	})
}

func remoteIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
