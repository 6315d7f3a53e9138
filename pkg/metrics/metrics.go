package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records gateway authentication attempts by result (success|failure).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filebridge_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"result"},
	)

	// ActiveSessions tracks pool members with a live remote connection.
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "filebridge_active_sessions",
			Help: "Number of connected remote sessions",
		},
	)

	// SessionRestarts counts supervisor restarts per session.
	SessionRestarts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filebridge_session_restarts_total",
			Help: "Total number of session restarts performed by the pool supervisor",
		},
		[]string{"session"},
	)

	// RemoteOperations counts remote file operations by session, operation and result (success|error).
	RemoteOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filebridge_remote_operations_total",
			Help: "Total number of remote file operations",
		},
		[]string{"session", "operation", "result"},
	)

	// RemoteOperationLatency measures how long individual remote operations take.
	RemoteOperationLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "filebridge_remote_operation_seconds",
			Help:    "Remote file operation latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// TransferBytes counts file bytes served to clients by transfer mode (content|stream).
	TransferBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filebridge_transfer_bytes_total",
			Help: "Total file bytes served to clients",
		},
		[]string{"session", "mode"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "filebridge_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
