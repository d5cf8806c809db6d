package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTP API metrics, recorded by MetricsMiddleware.
var (
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cueplay_api_requests_total",
			Help: "Total HTTP requests served by the status API.",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cueplay_api_request_duration_seconds",
			Help:    "HTTP request latency for the status API.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status"},
	)

	APIActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cueplay_api_active_connections",
			Help: "HTTP requests currently in flight.",
		},
	)
)

// Playout metrics, recorded by the controller.
var (
	// EngineState mirrors the transport state machine:
	// 0 stopped, 1 playing, 2 paused, 3 halting.
	EngineState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cueplay_engine_state",
			Help: "Current engine transport state (0=stopped, 1=playing, 2=paused, 3=halting).",
		},
	)

	PlaybackPosition = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cueplay_playback_position_seconds",
			Help: "Playback position of the active session in seconds.",
		},
	)

	SessionsStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cueplay_sessions_started_total",
			Help: "Playback sessions started, by mode.",
		},
		[]string{"mode"},
	)

	SessionsEnded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cueplay_sessions_ended_total",
			Help: "Playback sessions ended, by reason.",
		},
		[]string{"reason"},
	)

	FadesStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cueplay_fades_started_total",
			Help: "Volume fades started, by kind.",
		},
		[]string{"kind"},
	)

	RemoteCommands = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cueplay_remote_commands_total",
			Help: "Commands received on the show-control socket, by command.",
		},
		[]string{"command"},
	)

	PlaylistCursor = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cueplay_playlist_cursor",
			Help: "Index of the current playlist entry (-1 when before the first song).",
		},
	)

	PlaylistSongs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cueplay_playlist_songs",
			Help: "Number of songs in the loaded playlist.",
		},
	)
)

// History database metrics, recorded by gorm callbacks.
var (
	DatabaseQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cueplay_db_query_duration_seconds",
			Help:    "Latency of history database operations.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DatabaseErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cueplay_db_errors_total",
			Help: "History database operations that returned an error.",
		},
		[]string{"operation"},
	)

	DatabaseConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cueplay_db_connections_open",
			Help: "Open connections in the history database pool.",
		},
	)
)

// Handler exposes the Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
