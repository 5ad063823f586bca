// Package prometheus provides Prometheus-backed implementations of the
// metrics interfaces.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/luckygong/streambus/pkg/metrics"
)

// authMetrics is the Prometheus implementation of metrics.AuthMetrics.
type authMetrics struct {
	handshakes      *prometheus.CounterVec
	authentications *prometheus.CounterVec
	authDuration    *prometheus.HistogramVec
	legacyFallbacks prometheus.Counter
	activeSessions  prometheus.Gauge
	connsAccepted   prometheus.Counter
	connsClosed     prometheus.Counter
}

// NewAuthMetrics creates a new Prometheus-backed AuthMetrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewAuthMetrics() metrics.AuthMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &authMetrics{
		handshakes: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "streambus_auth_handshakes_total",
				Help: "Total number of mechanism negotiation attempts by mechanism and result",
			},
			[]string{"mechanism", "error_code"}, // error_code: "" on success
		),
		authentications: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "streambus_auth_attempts_total",
				Help: "Total number of finished authentication attempts by mechanism and outcome",
			},
			[]string{"mechanism", "outcome"}, // outcome: "success", "invalid_credentials", ...
		),
		authDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "streambus_auth_duration_milliseconds",
				Help: "Duration from connection accept to authentication completion in milliseconds",
				Buckets: []float64{
					1,     // 1ms - single round trip, local store
					5,     // 5ms
					10,    // 10ms
					50,    // 50ms - bcrypt verification
					100,   // 100ms
					500,   // 500ms - KDC round trips
					1000,  // 1s
					5000,  // 5s
					30000, // 30s - nearly idle timeout
				},
			},
			[]string{"mechanism"},
		),
		legacyFallbacks: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "streambus_auth_legacy_fallbacks_total",
				Help: "Total number of sessions routed to the default mechanism without negotiation",
			},
		),
		activeSessions: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "streambus_auth_active_sessions",
				Help: "Current number of connections inside the authentication handshake",
			},
		),
		connsAccepted: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "streambus_auth_connections_accepted_total",
				Help: "Total number of accepted connections",
			},
		),
		connsClosed: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "streambus_auth_connections_closed_total",
				Help: "Total number of closed connections",
			},
		),
	}
}

func (m *authMetrics) RecordHandshake(mechanism string, errorCode string) {
	if m == nil {
		return
	}
	m.handshakes.WithLabelValues(mechanism, errorCode).Inc()
}

func (m *authMetrics) RecordAuthentication(mechanism string, duration time.Duration, outcome string) {
	if m == nil {
		return
	}
	m.authentications.WithLabelValues(mechanism, outcome).Inc()
	m.authDuration.WithLabelValues(mechanism).Observe(duration.Seconds() * 1000)
}

func (m *authMetrics) RecordLegacyFallback() {
	if m == nil {
		return
	}
	m.legacyFallbacks.Inc()
}

func (m *authMetrics) SetActiveSessions(count int32) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(count))
}

func (m *authMetrics) RecordConnectionAccepted() {
	if m == nil {
		return
	}
	m.connsAccepted.Inc()
}

func (m *authMetrics) RecordConnectionClosed() {
	if m == nil {
		return
	}
	m.connsClosed.Inc()
}
