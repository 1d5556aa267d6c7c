package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestSessionMetrics(t *testing.T) {
	s := NewSessionMetrics(prometheus.NewRegistry())
	boom := errors.New("boom")

	s.SetActive(3)
	s.ConnectAttempted(nil)
	s.ConnectAttempted(boom)
	s.Reconnecting()
	s.Disconnected(515)
	s.Disconnected(515)
	s.Disconnected(401)
	s.CredentialsSaved(nil)
	s.CredentialsSaved(boom)
	s.Notified("bot_added", nil)

	assert.Equal(t, 3.0, testutil.ToFloat64(s.Active))
	assert.Equal(t, 2.0, testutil.ToFloat64(s.ConnectAttempts))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.ConnectFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.Reconnects))
	assert.Equal(t, 2.0, testutil.ToFloat64(s.Disconnects.WithLabelValues("515")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.Disconnects.WithLabelValues("401")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.CredentialSaves.WithLabelValues(ResultSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.CredentialSaves.WithLabelValues(ResultFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.Notifications.WithLabelValues("bot_added", ResultSuccess)))
}

func TestSessionMetricsNilReceiver(t *testing.T) {
	var s *SessionMetrics

	assert.NotPanics(t, func() {
		s.SetActive(1)
		s.ConnectAttempted(nil)
		s.Reconnecting()
		s.Disconnected(408)
		s.CredentialsSaved(nil)
		s.Notified("bot_deleted", errors.New("x"))
	})
}
