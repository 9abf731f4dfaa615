// Package metrics exposes Prometheus instrumentation for scans, the fetch
// cache and retries.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/TheMichaelB/totescan/internal/models"
	"github.com/TheMichaelB/totescan/internal/retry"
)

// Scan outcomes
const (
	OutcomeSuccess     = "success"
	OutcomeFailure     = "failure"
	OutcomeRejected    = "rejected"
	OutcomeRateLimited = "rate_limited"
)

// Metrics holds all scanner metrics.
type Metrics struct {
	registry *prometheus.Registry

	ScansTotal      *prometheus.CounterVec
	CacheLookups    *prometheus.CounterVec
	FetchesTotal    *prometheus.CounterVec
	FetchDuration   prometheus.Histogram
	RetriesTotal    *prometheus.CounterVec
	ScansInProgress prometheus.Gauge
}

// New creates a Metrics instance on its own registry.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "totescan"
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{registry: registry}

	m.ScansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_total",
			Help:      "Total number of scan submissions by outcome",
		},
		[]string{"outcome"},
	)

	m.CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Total number of cache lookups by result",
		},
		[]string{"result"},
	)

	m.FetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetches_total",
			Help:      "Total number of settled tote fetches by status",
		},
		[]string{"status"},
	)

	m.FetchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Tote fetch duration in seconds, retries included",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	m.RetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_retries_total",
			Help:      "Total number of fetch retries by triggering status",
		},
		[]string{"status"},
	)

	m.ScansInProgress = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scans_in_progress",
			Help:      "Number of foreground scans currently in flight",
		},
	)

	registry.MustRegister(
		m.ScansTotal,
		m.CacheLookups,
		m.FetchesTotal,
		m.FetchDuration,
		m.RetriesTotal,
		m.ScansInProgress,
	)

	return m
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordScan counts one scan submission.
func (m *Metrics) RecordScan(outcome string) {
	m.ScansTotal.WithLabelValues(outcome).Inc()
}

// ScanStarted and ScanFinished track foreground scans in flight.
func (m *Metrics) ScanStarted()  { m.ScansInProgress.Inc() }
func (m *Metrics) ScanFinished() { m.ScansInProgress.Dec() }

// CacheLookup counts a cache hit or miss.
func (m *Metrics) CacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

// FetchCompleted records one settled fetch.
func (m *Metrics) FetchCompleted(elapsed time.Duration, err error) {
	status := "ok"
	if err != nil {
		fe := retry.Classify(err)
		status = strconv.Itoa(fe.Status)
		if fe.Kind == models.KindUnknown {
			status = "unknown"
		}
	}
	m.FetchesTotal.WithLabelValues(status).Inc()
	m.FetchDuration.Observe(elapsed.Seconds())
}

// RecordRetry counts one retry; it matches retry.Policy.OnRetry.
func (m *Metrics) RecordRetry(_ int, _ time.Duration, cause *models.FetchError) {
	status := "unknown"
	if cause != nil {
		status = strconv.Itoa(cause.Status)
	}
	m.RetriesTotal.WithLabelValues(status).Inc()
}
