package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Result label values.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// SessionMetrics tracks the supervisor's session lifecycle. All methods are
// safe on a nil receiver so callers can leave metrics disabled.
type SessionMetrics struct {
	Active          prometheus.Gauge
	ConnectAttempts prometheus.Counter
	ConnectFailures prometheus.Counter
	Reconnects      prometheus.Counter
	Disconnects     *prometheus.CounterVec
	CredentialSaves *prometheus.CounterVec
	Notifications   *prometheus.CounterVec
}

// NewSessionMetrics builds the session collectors and registers them on reg.
func NewSessionMetrics(reg prometheus.Registerer) *SessionMetrics {
	s := &SessionMetrics{
		Active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "active",
			Help:      "Sessions currently present in the registry",
		}),
		ConnectAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "connect_attempts_total",
			Help:      "Connection attempts made to the protocol engine",
		}),
		ConnectFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "connect_failures_total",
			Help:      "Connection attempts the engine rejected",
		}),
		Reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "reconnects_total",
			Help:      "Automatic reconnects triggered by the disconnect policy",
		}),
		Disconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "disconnects_total",
			Help:      "Connection closes observed, by protocol status code",
		}, []string{"status"}),
		CredentialSaves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "credential_saves_total",
			Help:      "Credential persistence attempts, by result",
		}, []string{"result"}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "notifications_total",
			Help:      "Bot lifecycle webhooks sent, by event and result",
		}, []string{"event", "result"}),
	}
	reg.MustRegister(
		s.Active, s.ConnectAttempts, s.ConnectFailures, s.Reconnects,
		s.Disconnects, s.CredentialSaves, s.Notifications,
	)
	return s
}

func resultLabel(err error) string {
	if err != nil {
		return ResultFailure
	}
	return ResultSuccess
}

// SetActive records the current registry size.
func (s *SessionMetrics) SetActive(n int) {
	if s == nil {
		return
	}
	s.Active.Set(float64(n))
}

// ConnectAttempted counts one engine connect call and its outcome.
func (s *SessionMetrics) ConnectAttempted(err error) {
	if s == nil {
		return
	}
	s.ConnectAttempts.Inc()
	if err != nil {
		s.ConnectFailures.Inc()
	}
}

// Reconnecting counts one policy-driven reconnect.
func (s *SessionMetrics) Reconnecting() {
	if s == nil {
		return
	}
	s.Reconnects.Inc()
}

// Disconnected counts one close event with the given status code.
func (s *SessionMetrics) Disconnected(statusCode int) {
	if s == nil {
		return
	}
	s.Disconnects.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// CredentialsSaved counts one credential write.
func (s *SessionMetrics) CredentialsSaved(err error) {
	if s == nil {
		return
	}
	s.CredentialSaves.WithLabelValues(resultLabel(err)).Inc()
}

// Notified counts one lifecycle webhook.
func (s *SessionMetrics) Notified(event string, err error) {
	if s == nil {
		return
	}
	s.Notifications.WithLabelValues(event, resultLabel(err)).Inc()
}
