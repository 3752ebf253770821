package metrics

import (
	"context"
	"net/http"
	"time"

	"catalog/internal/events"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	importEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_import_events_total",
			Help: "Import progress events by type.",
		},
		[]string{"type"},
	)
	importRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_import_runs_total",
			Help: "Finished import runs by final status.",
		},
		[]string{"status"},
	)
	importRunsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "catalog_import_runs_in_flight",
			Help: "Import runs currently executing in this process.",
		},
	)
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "endpoint", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 60},
		},
		[]string{"method", "endpoint", "status"},
	)
)

func init() {
	prometheus.MustRegister(importEventsTotal, importRunsTotal, importRunsInFlight)
	prometheus.MustRegister(httpRequestsTotal, httpRequestDuration)
}

// Publisher turns import progress events into counters. It never fails.
type Publisher struct{}

func (Publisher) Publish(_ context.Context, e events.Event) error {
	importEventsTotal.WithLabelValues(string(e.Type)).Inc()
	switch e.Type {
	case events.RunStarted:
		importRunsInFlight.Inc()
	case events.RunFinished:
		importRunsInFlight.Dec()
		importRunsTotal.WithLabelValues(e.Message).Inc()
	}
	return nil
}

// RecordRequest records one served HTTP request.
func RecordRequest(method, endpoint string, statusCode int, duration time.Duration) {
	status := classifyStatus(statusCode)
	httpRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint, status).Observe(duration.Seconds())
}

func classifyStatus(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return "2xx"
	case statusCode >= 300 && statusCode < 400:
		return "3xx"
	case statusCode >= 400 && statusCode < 500:
		return "4xx"
	case statusCode >= 500 && statusCode < 600:
		return "5xx"
	}
	return "unknown"
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
