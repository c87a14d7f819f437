package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry is the registry served at /metrics by every skycourier process.
var Registry = prometheus.NewRegistry()

var (
	// LinkConnectivityStatus is the gRPC link channel state.
	// 1 = Ready, 0 = Not Ready (Idle, Connecting, TransientFailure)
	LinkConnectivityStatus = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "skycourier_link_connectivity_status",
			Help: "The connectivity status to the vehicle link daemon (1=Ready, 0=NotReady).",
		},
	)

	// LinkCommandsTotal counts vehicle commands by operation and result.
	LinkCommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skycourier_link_commands_total",
			Help: "Total number of commands issued to the vehicle link.",
		},
		[]string{"op", "result"}, // op: set_mode/set_armed/takeoff/goto, result: success/failed
	)

	// LinkCommandLatency records the round trip of a vehicle command.
	LinkCommandLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "skycourier_link_command_latency_seconds",
			Help:    "Latency of commands issued to the vehicle link.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	// SnapshotErrorsTotal counts failed snapshot reads by consumer.
	SnapshotErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skycourier_snapshot_errors_total",
			Help: "Total number of failed vehicle snapshot reads.",
		},
		[]string{"consumer"}, // consumer: mission/telemetry
	)

	// MissionsTotal counts finished missions by result.
	MissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skycourier_missions_total",
			Help: "Total number of finished missions.",
		},
		[]string{"result"}, // result: Completed/Failed/Aborted
	)

	// MissionRejectedTotal counts triggers refused before a mission started.
	MissionRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skycourier_mission_rejected_total",
			Help: "Total number of mission requests rejected before start.",
		},
		[]string{"reason"}, // reason: busy/invalid
	)

	// MissionDuration records the wall time of finished missions.
	MissionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "skycourier_mission_duration_seconds",
			Help:    "Duration of finished missions.",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1200},
		},
		[]string{"result"},
	)

	// MissionPhaseTransitionsTotal counts entries into each phase.
	MissionPhaseTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skycourier_mission_phase_transitions_total",
			Help: "Total number of entries into each mission phase.",
		},
		[]string{"phase"},
	)

	// MissionActive is 1 while a mission is in flight.
	MissionActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "skycourier_mission_active",
			Help: "Whether a mission is currently in flight (1=active).",
		},
	)

	// TelemetryFramesTotal counts frames delivered to subscribers.
	TelemetryFramesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "skycourier_telemetry_frames_total",
			Help: "Total number of telemetry frames delivered to subscribers.",
		},
	)

	// TelemetryDroppedTotal counts subscribers removed after a failed send.
	TelemetryDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skycourier_telemetry_dropped_subscribers_total",
			Help: "Total number of telemetry subscribers removed after a failed send.",
		},
		[]string{"kind"}, // kind: websocket/mqtt
	)

	// TelemetrySubscribers is the current number of registered subscribers.
	TelemetrySubscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "skycourier_telemetry_subscribers",
			Help: "Number of registered telemetry subscribers.",
		},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		LinkConnectivityStatus,
		LinkCommandsTotal,
		LinkCommandLatency,
		SnapshotErrorsTotal,
		MissionsTotal,
		MissionRejectedTotal,
		MissionDuration,
		MissionPhaseTransitionsTotal,
		MissionActive,
		TelemetryFramesTotal,
		TelemetryDroppedTotal,
		TelemetrySubscribers,
	)
}
