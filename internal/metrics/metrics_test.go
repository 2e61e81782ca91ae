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

func TestNewRegistersCollectors(t *testing.T) {
	m := New()
	require.NotNil(t, m)
	require.NotNil(t, m.Registry())

	// Recording through every helper must not panic and must show up
	// in the registry.
	m.IncrementScansTotal("completed")
	m.IncrementScanErrors("TARGET_INVALID")
	m.RecordScanDuration(1500 * time.Millisecond)
	m.RecordProbe("open", 25*time.Millisecond)
	m.RecordProbe("filtered", time.Second)
	m.IncrementRateLimited()
	m.IncrementHTTPRequests("POST", "/api/v1/scan", "200")
	m.RecordHTTPDuration("POST", "/api/v1/scan", 80*time.Millisecond)

	families, err := m.Registry().Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}

	for _, want := range []string{
		"portscope_scan_total",
		"portscope_scan_duration_seconds",
		"portscope_scan_errors_total",
		"portscope_scan_active",
		"portscope_scan_rate_limited_total",
		"portscope_probe_duration_seconds",
		"portscope_probe_ports_total",
		"portscope_api_http_requests_total",
		"portscope_api_http_request_duration_seconds",
	} {
		assert.True(t, names[want], "metric family %s should be registered", want)
	}
}

func TestCounterValues(t *testing.T) {
	m := New()

	m.IncrementScansTotal("completed")
	m.IncrementScansTotal("completed")
	m.IncrementScansTotal("rejected")
	m.IncrementRateLimited()

	assert.Equal(t, float64(2), testutil.ToFloat64(m.scansTotal.WithLabelValues("completed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.scansTotal.WithLabelValues("rejected")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.rateLimited))
}

func TestScanStarted(t *testing.T) {
	m := New()

	done := m.ScanStarted()
	assert.Equal(t, float64(1), testutil.ToFloat64(m.activeScans))

	done()
	assert.Equal(t, float64(0), testutil.ToFloat64(m.activeScans))
}

func TestHandlerServesExposition(t *testing.T) {
	m := New()
	m.IncrementScansTotal("completed")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "portscope_scan_total"),
		"exposition should include scan counter")
	assert.True(t, strings.Contains(body, "go_goroutines"),
		"exposition should include runtime collectors")
}

func TestSeparateInstancesDoNotCollide(t *testing.T) {
	// Each instance owns its registry, so constructing two must not
	// trigger duplicate registration panics.
	a := New()
	b := New()
	a.IncrementScansTotal("completed")
	b.IncrementScansTotal("completed")
	assert.NotSame(t, a.Registry(), b.Registry())
}
