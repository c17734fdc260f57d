package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	c := NewCollector()
	c.SessionOpened("inbound")
	c.SessionOpened("inbound")
	c.Request(OutcomeBusy)
	c.Recovery(RecoveryRedial)
	c.CallStarted("outbound")
	c.File("sent")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.sessionsTotal.WithLabelValues("inbound")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.requestsTotal.WithLabelValues(OutcomeBusy)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.recoveriesTotal.WithLabelValues(RecoveryRedial)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.callsTotal.WithLabelValues("outbound")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.filesTotal.WithLabelValues("sent")))
}

func TestPresenceGauge(t *testing.T) {
	c := NewCollector()
	all := []string{"available", "busy", "away"}
	c.Presence("available", all...)
	c.Presence("busy", all...)

	assert.Equal(t, 0.0, testutil.ToFloat64(c.presence.WithLabelValues("available")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.presence.WithLabelValues("busy")))
}

func TestNilCollector(t *testing.T) {
	var c *Collector
	c.SessionOpened("outbound")
	c.Request(OutcomeQueued)
	c.CallEnded(time.Second)
	c.Presence("away")
}

func TestHandler(t *testing.T) {
	c := NewCollector()
	c.CallEnded(30 * time.Second)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "p2pchat_call_duration_seconds_count 1")
}
