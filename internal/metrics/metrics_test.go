package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserve_IncrementsCounters(t *testing.T) {
	_, m := NewRegistry()

	m.ObserveGateway("gateway", "GET", "ok", 20*time.Millisecond)
	m.ObserveGateway("gateway", "GET", "ok", 10*time.Millisecond)
	m.ObserveGateway("appointments", "POST", "timeout", time.Second)
	m.ObserveAuthCheck("refreshed")
	m.ObserveDenial("role_required", "forbidden")
	m.ObserveDecryptFailure()
	m.ObserveStoreError("save")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.GatewayRequests.WithLabelValues("gateway", "GET", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GatewayRequests.WithLabelValues("appointments", "POST", "timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuthChecks.WithLabelValues("refreshed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AccessDenials.WithLabelValues("role_required", "forbidden")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DecryptFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionStoreErrors.WithLabelValues("save")))
}

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveGateway("gateway", "GET", "ok", time.Millisecond)
		m.ObserveAuthCheck("valid")
		m.ObserveDenial("login_required", "unauthenticated")
		m.ObserveDecryptFailure()
		m.ObserveStoreError("get")
	})
}

func TestHandlerFor_ExposesMetrics(t *testing.T) {
	reg, m := NewRegistry()
	m.ObserveAuthCheck("valid")

	srv := httptest.NewServer(HandlerFor(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `frontend_auth_checks_total{outcome="valid"} 1`))
}
