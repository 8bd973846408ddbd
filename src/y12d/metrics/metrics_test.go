package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.IncJobCreated("debian", "server")
	m.IncJobStatus("failed")
	m.ObservePhase("validate", time.Second)
	m.IncKernelConfig("fallback")
	m.IncDispatch("")
	m.ObserveImageUpload(10)
	m.ObserveHTTPRequest("GET", "/", "200", time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestCounters(t *testing.T) {
	m := New()
	m.IncJobCreated("debian", "server")
	m.IncJobCreated("debian", "server")
	m.IncJobStatus("complete")
	m.IncDispatch("")

	body := scrape(t, m)
	assert.Contains(t, body, `y12_job_created_total{distro="debian",mode="server"} 2`)
	assert.Contains(t, body, `y12_job_status_total{status="complete"} 1`)
	assert.Contains(t, body, `y12_dispatch_total{result="unknown"} 1`)
}

func TestHandlerServesRegistry(t *testing.T) {
	m := New()
	m.IncKernelConfig("ai")
	m.ObserveHTTPRequest("GET", "", "404", time.Millisecond)

	body := scrape(t, m)
	assert.True(t, strings.Contains(body, `y12_kernel_config_generated_total{source="ai"} 1`))
	assert.Contains(t, body, `route="unmatched"`)
}
