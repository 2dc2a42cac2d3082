// Package metrics holds the Prometheus collectors every service registers,
// all under the feedrank namespace, and serves them for scraping.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "feedrank"

// Metrics holds all Prometheus collectors. Its methods plug into the
// engine, language registry and caches as observers.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	EntriesProcessed     *prometheus.CounterVec
	ProcessDuration      prometheus.Histogram
	FeaturesLearned      prometheus.Histogram
	ModelLoadsTotal      *prometheus.CounterVec
	ModelLoadDuration    prometheus.Histogram
	SearchQueriesTotal   *prometheus.CounterVec
	SearchLatency        *prometheus.HistogramVec
	SearchResultsCount   prometheus.Histogram
	CacheLookupsTotal    *prometheus.CounterVec
	MessagesTotal        *prometheus.CounterVec
	RetriesTotal         *prometheus.CounterVec
	BreakerState         *prometheus.GaugeVec

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them with the default registry.
func New() *Metrics {
	return newMetrics(prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
}

// NewWith creates the collectors on a private registry.
func NewWith(reg *prometheus.Registry) *Metrics {
	return newMetrics(reg, reg)
}

func newMetrics(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	m := &Metrics{
		gatherer: gatherer,
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Requests served, by method, route pattern and status code.",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Time from request arrival to the last byte written.",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "route"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Requests currently inside a handler.",
			},
		),
		EntriesProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "entries_processed_total",
				Help:      "Total entries tagged, by language model.",
			},
			[]string{"model"},
		),
		ProcessDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "entry_process_duration_seconds",
				Help:      "Time to tag, serialize and mine one entry.",
				Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
			},
		),
		FeaturesLearned: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "features_learned",
				Help:      "Features mined per entry.",
				Buckets:   []float64{0, 1, 2, 5, 10, 25, 50},
			},
		),
		ModelLoadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "language_model_loads_total",
				Help:      "Language model loads by model and status.",
			},
			[]string{"model", "status"},
		),
		ModelLoadDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "language_model_load_seconds",
				Help:      "Language model load latency in seconds.",
				Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
		),
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "search_queries_total",
				Help:      "Phrase queries run, by match mode.",
			},
			[]string{"mode"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "search_latency_seconds",
				Help:      "Time to run and rank one phrase query.",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"mode"},
		),
		SearchResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "search_results_count",
				Help:      "Hits returned by one phrase query.",
				Buckets:   []float64{0, 1, 5, 10, 25, 50, 100},
			},
		),
		CacheLookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Cache lookups by cache and result (hit, miss).",
			},
			[]string{"cache", "result"},
		),
		MessagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "consumer_messages_total",
				Help:      "Consumed entry events by outcome.",
			},
			[]string{"status"},
		),
		RetriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_retries_total",
				Help:      "Retried store operations by operation.",
			},
			[]string{"operation"},
		),
		BreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_state",
				Help:      "Circuit breaker phase: 0 closed, 1 open, 2 half-open.",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.EntriesProcessed,
		m.ProcessDuration,
		m.FeaturesLearned,
		m.ModelLoadsTotal,
		m.ModelLoadDuration,
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.SearchResultsCount,
		m.CacheLookupsTotal,
		m.MessagesTotal,
		m.RetriesTotal,
		m.BreakerState,
	)

	return m
}

// EntryProcessed records one processed entry.
func (m *Metrics) EntryProcessed(model string, features int, took time.Duration) {
	m.EntriesProcessed.WithLabelValues(model).Inc()
	m.ProcessDuration.Observe(took.Seconds())
	m.FeaturesLearned.Observe(float64(features))
}

// QueryServed records one answered search.
func (m *Metrics) QueryServed(mode string, results int, took time.Duration) {
	m.SearchQueriesTotal.WithLabelValues(mode).Inc()
	m.SearchLatency.WithLabelValues(mode).Observe(took.Seconds())
	m.SearchResultsCount.Observe(float64(results))
}

// ModelLoaded records a language model load attempt.
func (m *Metrics) ModelLoaded(model string, took time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.ModelLoadsTotal.WithLabelValues(model, status).Inc()
	m.ModelLoadDuration.Observe(took.Seconds())
}

// CacheLookup returns an observer counting lookups of the named cache.
func (m *Metrics) CacheLookup(cache string) func(hit bool) {
	hits := m.CacheLookupsTotal.WithLabelValues(cache, "hit")
	misses := m.CacheLookupsTotal.WithLabelValues(cache, "miss")
	return func(hit bool) {
		if hit {
			hits.Inc()
			return
		}
		misses.Inc()
	}
}

// Message records the outcome of one consumed event.
func (m *Metrics) Message(status string) {
	m.MessagesTotal.WithLabelValues(status).Inc()
}

// HTTPRequest records one finished request against its route.
func (m *Metrics) HTTPRequest(method, route string, status int, took time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(took.Seconds())
}

// Retried counts one retried store operation.
func (m *Metrics) Retried(op string) {
	m.RetriesTotal.WithLabelValues(op).Inc()
}

// SetBreakerState records the phase of a named breaker.
func (m *Metrics) SetBreakerState(name string, state int) {
	m.BreakerState.WithLabelValues(name).Set(float64(state))
}
