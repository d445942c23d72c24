// Package metrics exposes Prometheus collectors for the aggregator.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	sourceRowsTotal            *prometheus.CounterVec
	sourceFailuresTotal        *prometheus.CounterVec
	runDurationSeconds         prometheus.Histogram
	runProjectsMerged          prometheus.Gauge
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		sourceRowsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bess_source_rows_total",
				Help: "Total rows scraped, labeled by source.",
			},
			[]string{"source"},
		)

		sourceFailuresTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bess_source_failures_total",
				Help: "Total scrape failures, labeled by source.",
			},
			[]string{"source"},
		)

		runDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "bess_run_duration_seconds",
				Help:    "Histogram of full aggregation run durations.",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
		)

		runProjectsMerged = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "bess_run_projects_merged",
				Help: "Projects in the merged dataset after the last run.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveSource records one finished source scrape.
func ObserveSource(source string, rows int, err error) {
	if err != nil {
		sourceFailuresTotal.WithLabelValues(source).Inc()
		return
	}
	sourceRowsTotal.WithLabelValues(source).Add(float64(rows))
}

// ObserveRun records a completed aggregation run.
func ObserveRun(merged int, duration time.Duration) {
	runProjectsMerged.Set(float64(merged))
	runDurationSeconds.Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
