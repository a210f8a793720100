package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.SessionEvent(EventLogin)
	m.SessionEvent(EventLogin)
	m.SessionEvent(EventRefresh)
	m.GuardRejected("invalid_refresh")
	m.UserRegistered()
	m.TokensPruned(3)
	m.TokensPruned(0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.sessions.WithLabelValues(EventLogin)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sessions.WithLabelValues(EventRefresh)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.guardRejections.WithLabelValues("invalid_refresh")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.registeredUsers))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.prunedTokens))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.SessionEvent(EventLogout)
		m.GuardRejected("x")
		m.UserRegistered()
		m.TokensPruned(1)
		m.ObserveHTTP(http.MethodGet, "/health", 200, time.Millisecond)
	})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ObserveHTTP(http.MethodPost, "POST /api/v1/auth/login", 200, 5*time.Millisecond)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "web_beat_http_requests_total")
	assert.Contains(t, string(body), "web_beat_http_request_duration_seconds")
}
