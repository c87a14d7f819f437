package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/autopeer-io/skycourier/internal/mission"
	"github.com/autopeer-io/skycourier/internal/telemetry"
)

const (
	statusCompleted = "Mission completed"
	statusError     = "Error during mission"
)

// TrackResponse is the body of every /track reply.
type TrackResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// handleTrack flies a mission to ?lat=&lon= and replies when it is over.
// Every started mission answers 200; requests that never start one get 400
// or 409 with the same body shape.
func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	req, err := parseTrackRequest(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, TrackResponse{Status: statusError, Error: err.Error()})
		return
	}

	s.logger.Info("Mission requested", "lat", req.Latitude, "lon", req.Longitude, "remote", remoteIP(r))
	outcome, err := s.missions.Run(s.missionCtx, req)
	switch {
	case errors.Is(err, mission.ErrMissionInProgress):
		writeJSON(w, http.StatusConflict, TrackResponse{Status: statusError, Error: err.Error()})
		return
	case err != nil:
		writeJSON(w, http.StatusBadRequest, TrackResponse{Status: statusError, Error: err.Error()})
		return
	}

	if outcome.Succeeded() {
		writeJSON(w, http.StatusOK, TrackResponse{Status: statusCompleted})
		return
	}
	writeJSON(w, http.StatusOK, TrackResponse{Status: statusError, Error: outcome.Reason.Error()})
}

func parseTrackRequest(r *http.Request) (mission.Request, error) {
	var req mission.Request
	var err error

	if req.Latitude, err = parseCoordinate(r, "lat"); err != nil {
		return req, err
	}
	if req.Longitude, err = parseCoordinate(r, "lon"); err != nil {
		return req, err
	}
	// Altitude stays zero: the controller flies at its configured cruise altitude.
	return req, req.Validate()
}

func parseCoordinate(r *http.Request, key string) (float64, error) {
	raw := r.FormValue(key)
	if raw == "" {
		return 0, fmt.Errorf("%w: %s is required", mission.ErrInvalidRequest, key)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %s=%q is not a number", mission.ErrInvalidRequest, key, raw)
	}
	return v, nil
}

func (s *Server) handleMissionStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.missions.Status())
}

func (s *Server) handleMissionAbort(w http.ResponseWriter, r *http.Request) {
	if !s.missions.Abort() {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "no mission in flight"})
		return
	}
	s.logger.Warn("Mission abort requested", "remote", remoteIP(r))
	writeJSON(w, http.StatusAccepted, map[string]bool{"aborted": true})
}

// handleTelemetry upgrades to a websocket and streams frames until the
// client goes away.
func (s *Server) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied.
		s.logger.Debug("Websocket upgrade failed", "remote", remoteIP(r), "error", err.Error())
		return
	}

	sub := telemetry.NewWebsocketSubscriber(conn)
	s.telemetry.Subscribe(sub)
	s.logger.Info("Telemetry client connected", "id", sub.ID(), "remote", remoteIP(r))

	<-sub.Done()
	s.telemetry.Unsubscribe(sub.ID())
	s.logger.Info("Telemetry client disconnected", "id", sub.ID())
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReadyz reports ready while the vehicle link keeps answering.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	last := s.telemetry.LastFrameAt()
	if last.IsZero() || time.Since(last) > readyFrames*s.telemetry.Interval() {
		http.Error(w, "vehicle link not answering", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
