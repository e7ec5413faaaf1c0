package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's Prometheus collectors on a private registry
type Metrics struct {
	registry *prometheus.Registry

	Registrations     *prometheus.CounterVec
	Approvals         *prometheus.CounterVec
	Logins            *prometheus.CounterVec
	VisitsLogged      *prometheus.CounterVec
	VisitsExited      prometheus.Counter
	GatePassesIssued  prometheus.Counter
	GatePassFailures  *prometheus.CounterVec
	GenerationSeconds *prometheus.HistogramVec
	SharesSent        *prometheus.CounterVec
	HTTPRequests      *prometheus.CounterVec
	HTTPDuration      *prometheus.HistogramVec
}

// New creates and registers all collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Registrations: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "society_registrations_total", Help: "Resident registrations by result"},
			[]string{"result"},
		),
		Approvals: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "society_registration_decisions_total", Help: "Admin approval decisions"},
			[]string{"decision"},
		),
		Logins: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "society_logins_total", Help: "Login attempts by principal and result"},
			[]string{"principal", "result"},
		),
		VisitsLogged: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "society_visits_logged_total", Help: "Walk-in visits logged at the gate"},
			[]string{"type"},
		),
		VisitsExited: prometheus.NewCounter(
			prometheus.CounterOpts{Name: "society_visits_exited_total", Help: "Visits marked as exited"},
		),
		GatePassesIssued: prometheus.NewCounter(
			prometheus.CounterOpts{Name: "society_gate_passes_issued_total", Help: "Gate passes issued"},
		),
		GatePassFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "society_gate_pass_failures_total", Help: "Gate pass generation failures"},
			[]string{"reason"},
		),
		GenerationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "society_generation_duration_seconds",
				Help:    "Time spent in gate pass and share message generation",
				Buckets: []float64{0.05, 0.25, 1, 2, 5, 10, 20},
			},
			[]string{"operation", "generator"},
		),
		SharesSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "society_gate_pass_shares_total", Help: "Gate pass shares by method and result"},
			[]string{"method", "result"},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "society_http_requests_total", Help: "HTTP requests by route and status"},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "society_http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Registrations, m.Approvals, m.Logins,
		m.VisitsLogged, m.VisitsExited,
		m.GatePassesIssued, m.GatePassFailures, m.GenerationSeconds,
		m.SharesSent, m.HTTPRequests, m.HTTPDuration,
	)

	return m
}

// Registry exposes the underlying registry, mainly for tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveGeneration records how long a generator call took
func (m *Metrics) ObserveGeneration(operation, generator string, started time.Time) {
	m.GenerationSeconds.WithLabelValues(operation, generator).Observe(time.Since(started).Seconds())
}

// Middleware records request counts and latency per matched route
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
