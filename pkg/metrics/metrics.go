package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors of one client core instance.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Backend requests by endpoint name and status
	Requests *prometheus.CounterVec
	// Backend response time
	RequestDuration *prometheus.HistogramVec
	// Token refresh attempts by result
	Refreshes *prometheus.CounterVec
	// Note persistence outcomes by result
	Writes *prometheus.CounterVec
	// Queued writes not yet succeeded
	PendingWrites prometheus.Gauge
	// Session transitions by target status
	SessionTransitions *prometheus.CounterVec
}

// New creates the collectors and registers them on a private registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sharednotes",
				Name:      "api_requests_total",
				Help:      "Total number of backend requests",
			},
			[]string{"endpoint", "method", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "sharednotes",
				Name:      "api_request_duration_seconds",
				Help:      "Backend response time in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
			},
			[]string{"endpoint"},
		),
		Refreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sharednotes",
				Name:      "token_refreshes_total",
				Help:      "Access token refresh attempts",
			},
			[]string{"result"},
		),
		Writes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sharednotes",
				Name:      "note_writes_total",
				Help:      "Note persistence attempts",
			},
			[]string{"result"},
		),
		PendingWrites: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "sharednotes",
				Name:      "pending_writes",
				Help:      "Writes that have not been persisted yet",
			},
		),
		SessionTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sharednotes",
				Name:      "session_transitions_total",
				Help:      "Session status changes",
			},
			[]string{"status"},
		),
	}

	m.registry.MustRegister(
		m.Requests,
		m.RequestDuration,
		m.Refreshes,
		m.Writes,
		m.PendingWrites,
		m.SessionTransitions,
	)
	return m
}

// Registry returns the registry holding the collectors
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the collectors in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one backend round trip. status is "error" for
// transport failures.
func (m *Metrics) ObserveRequest(endpoint, method, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(endpoint, method, status).Inc()
	m.RequestDuration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

// ObserveRefresh records a refresh attempt
func (m *Metrics) ObserveRefresh(ok bool) {
	if m == nil {
		return
	}
	m.Refreshes.WithLabelValues(result(ok)).Inc()
}

// ObserveWrite records a persistence outcome
func (m *Metrics) ObserveWrite(ok bool) {
	if m == nil {
		return
	}
	m.Writes.WithLabelValues(result(ok)).Inc()
}

// SetPendingWrites sets the number of unsettled writes
func (m *Metrics) SetPendingWrites(n int) {
	if m == nil {
		return
	}
	m.PendingWrites.Set(float64(n))
}

// ObserveSession records a session status change
func (m *Metrics) ObserveSession(status string) {
	if m == nil {
		return
	}
	m.SessionTransitions.WithLabelValues(status).Inc()
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
