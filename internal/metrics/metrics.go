// Package metrics provides Prometheus metrics for the quince daemons.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Protocol command metrics
	commandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quince_commands_total",
			Help: "Total number of protocol commands processed",
		},
		[]string{"service", "command", "status"},
	)

	// Transfer metrics
	transferBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quince_transfer_bytes_total",
			Help: "Total payload bytes moved over client and backend sockets",
		},
		[]string{"service", "direction"},
	)

	// Session metrics
	activeSessions = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "quince_active_sessions",
			Help: "Number of currently open protocol sessions",
		},
		[]string{"service"},
	)

	sessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quince_sessions_total",
			Help: "Total number of accepted connections",
		},
		[]string{"service"},
	)

	// Backend relay metrics
	backendDialsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quince_backend_dials_total",
			Help: "Total connection attempts from the gateway to storage nodes",
		},
		[]string{"category", "status"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordCommand records a processed protocol command.
func RecordCommand(service, command string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	commandsTotal.WithLabelValues(service, command, status).Inc()
}

// AddBytesIn records payload bytes received from a peer.
func AddBytesIn(service string, n int64) {
	if n > 0 {
		transferBytesTotal.WithLabelValues(service, "in").Add(float64(n))
	}
}

// AddBytesOut records payload bytes sent to a peer.
func AddBytesOut(service string, n int64) {
	if n > 0 {
		transferBytesTotal.WithLabelValues(service, "out").Add(float64(n))
	}
}

// SessionOpened records an accepted connection.
func SessionOpened(service string) {
	sessionsTotal.WithLabelValues(service).Inc()
	activeSessions.WithLabelValues(service).Inc()
}

// SessionClosed records a finished session.
func SessionClosed(service string) {
	activeSessions.WithLabelValues(service).Dec()
}

// RecordBackendDial records a gateway-to-node connection attempt.
func RecordBackendDial(category string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	backendDialsTotal.WithLabelValues(category, status).Inc()
}
