package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for catalogue collection.
type Metrics struct {
	Registry         *prometheus.Registry
	FetchesTotal     *prometheus.CounterVec
	FetchDuration    prometheus.Histogram
	RecordsCollected prometheus.Counter
	RetriesTotal     prometheus.Counter
	ErrorsTotal      *prometheus.CounterVec
	StopsTotal       *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	fetches := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collector_page_fetches_total",
			Help: "Total page fetch attempts by outcome.",
		},
		[]string{"outcome"},
	)
	fetchDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "collector_page_fetch_duration_seconds",
			Help:    "Latency of a single page fetch and extraction.",
			Buckets: prometheus.DefBuckets,
		},
	)
	records := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "collector_records_collected_total",
			Help: "Total number of records appended to catalogues.",
		},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "collector_retries_total",
			Help: "Total number of page retry attempts.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collector_errors_total",
			Help: "Total number of page fetch errors by type.",
		},
		[]string{"error_type"},
	)
	stops := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collector_stops_total",
			Help: "Completed collection runs by stop reason.",
		},
		[]string{"reason"},
	)

	registry.MustRegister(fetches, fetchDuration, records, retries, errorsTotal, stops)

	return &Metrics{
		Registry:         registry,
		FetchesTotal:     fetches,
		FetchDuration:    fetchDuration,
		RecordsCollected: records,
		RetriesTotal:     retries,
		ErrorsTotal:      errorsTotal,
		StopsTotal:       stops,
	}
}

// IncFetch increments the fetch counter for an outcome label.
func (m *Metrics) IncFetch(outcome string) {
	if m == nil {
		return
	}
	m.FetchesTotal.WithLabelValues(outcome).Inc()
}

// ObserveDuration records a page fetch duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.FetchDuration.Observe(d.Seconds())
}

// AddRecords increments the collected records counter.
func (m *Metrics) AddRecords(n int) {
	if m == nil {
		return
	}
	m.RecordsCollected.Add(float64(n))
}

// IncRetries increments the retries counter.
func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// IncStop increments the stop counter for a reason label.
func (m *Metrics) IncStop(reason string) {
	if m == nil {
		return
	}
	m.StopsTotal.WithLabelValues(reason).Inc()
}
