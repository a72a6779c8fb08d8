package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecord(t *testing.T) {
	m := New()
	m.ObserveRequest("notes.list", "GET", "200", 20*time.Millisecond)
	m.ObserveRequest("notes.list", "GET", "200", 10*time.Millisecond)
	m.ObserveRefresh(false)
	m.ObserveWrite(true)
	m.SetPendingWrites(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Requests.WithLabelValues("notes.list", "GET", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Refreshes.WithLabelValues("failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Writes.WithLabelValues("success")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.PendingWrites))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "sharednotes_api_requests_total")
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRequest("x", "GET", "200", time.Second)
		m.ObserveRefresh(true)
		m.ObserveWrite(false)
		m.SetPendingWrites(1)
		m.ObserveSession("anonymous")
	})
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 404, rec.Code)
}
