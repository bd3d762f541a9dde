package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthEvent(t *testing.T) {
	m := New()
	m.AuthEvent(EventRefreshReuse)
	m.AuthEvent(EventRefreshReuse)
	m.AuthEvent(EventLoginSuccess)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.authEvents.WithLabelValues(EventRefreshReuse)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.authEvents.WithLabelValues(EventLoginSuccess)))
}

func TestObserveHTTPAndHandler(t *testing.T) {
	m := New()
	m.ObserveHTTP(http.MethodPost, "/api/v1/users/login", 200, 15*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("POST", "/api/v1/users/login", "200")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "channelhub_http_requests_total"))
	assert.True(t, strings.Contains(body, "channelhub_http_request_duration_seconds"))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.AuthEvent(EventLogout)
	m.ObserveHTTP("GET", "/", 200, time.Second)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
