// Package metrics exposes Prometheus counters and histograms for HTTP traffic
// and the prescription lifecycle. A nil *Collector is valid and records
// nothing, so services can run without metrics in tests.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "acne"

type Collector struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	prescriptionsGenerated  *prometheus.CounterVec
	prescriptionTransitions *prometheus.CounterVec
	generationFailures      prometheus.Counter
	generationDuration      prometheus.Histogram
	diagnosesTotal          *prometheus.CounterVec
	remindersScheduled      prometheus.Counter
	authAttemptsTotal       *prometheus.CounterVec
}

// NewCollector registers every metric, plus the Go runtime and process
// collectors, on a fresh registry.
func NewCollector() *Collector {
	m := &Collector{
		registry: prometheus.NewRegistry(),
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status_code"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		prescriptionsGenerated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "prescriptions_generated_total",
				Help:      "Prescriptions created by the generation backend, by severity",
			},
			[]string{"severity"},
		),
		prescriptionTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "prescription_transitions_total",
				Help:      "Doctor review decisions, by resulting status",
			},
			[]string{"status"},
		),
		generationFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "prescription_generation_failures_total",
				Help:      "Generation backend failures and timeouts",
			},
		),
		generationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "prescription_generation_duration_seconds",
				Help:      "Time spent in the generation backend",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
			},
		),
		diagnosesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "diagnoses_total",
				Help:      "Stored diagnoses, by severity",
			},
			[]string{"severity"},
		),
		remindersScheduled: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reminders_scheduled_total",
				Help:      "Reminders created from approved prescriptions",
			},
		),
		authAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_attempts_total",
				Help:      "Login attempts, by outcome",
			},
			[]string{"status"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.prescriptionsGenerated,
		m.prescriptionTransitions,
		m.generationFailures,
		m.generationDuration,
		m.diagnosesTotal,
		m.remindersScheduled,
		m.authAttemptsTotal,
	)
	return m
}

func (m *Collector) RecordHTTPRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Collector) PrescriptionGenerated(severity string, d time.Duration) {
	if m == nil {
		return
	}
	m.prescriptionsGenerated.WithLabelValues(severity).Inc()
	m.generationDuration.Observe(d.Seconds())
}

func (m *Collector) GenerationFailed(d time.Duration) {
	if m == nil {
		return
	}
	m.generationFailures.Inc()
	m.generationDuration.Observe(d.Seconds())
}

func (m *Collector) PrescriptionTransitioned(status string) {
	if m == nil {
		return
	}
	m.prescriptionTransitions.WithLabelValues(status).Inc()
}

func (m *Collector) DiagnosisStored(severity string) {
	if m == nil {
		return
	}
	m.diagnosesTotal.WithLabelValues(severity).Inc()
}

func (m *Collector) RemindersScheduled(n int) {
	if m == nil {
		return
	}
	m.remindersScheduled.Add(float64(n))
}

func (m *Collector) RecordAuthAttempt(status string) {
	if m == nil {
		return
	}
	m.authAttemptsTotal.WithLabelValues(status).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records one request sample per response, labelled by the
// registered route template rather than the raw path.
func (m *Collector) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			} else if err != nil {
				status = http.StatusInternalServerError
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			m.RecordHTTPRequest(c.Request().Method, route, status, time.Since(start))
			return err
		}
	}
}
