// Package metrics exposes prometheus collectors for the HTTP API, link search
// and the patch runner.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector groups every linkdesk metric. A nil *Collector records nothing,
// so callers never need to check whether metrics are enabled.
type Collector struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	searchRequestsTotal *prometheus.CounterVec
	searchResults       *prometheus.HistogramVec
	searchDuration      *prometheus.HistogramVec

	patchRunsTotal *prometheus.CounterVec

	translationCacheTotal *prometheus.CounterVec
}

// NewCollector registers all metrics on a fresh registry under namespace
func NewCollector(namespace string) *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,

		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		searchRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "search_requests_total",
				Help:      "Link searches by doctype and outcome",
			},
			[]string{"doctype", "outcome"},
		),
		searchResults: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "search_results",
				Help:      "Number of rows returned per link search",
				Buckets:   []float64{0, 1, 5, 10, 20, 50, 100, 500},
			},
			[]string{"doctype"},
		),
		searchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "search_duration_seconds",
				Help:      "Link search latency in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"doctype"},
		),

		patchRunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "patch_runs_total",
				Help:      "Patch executions by outcome (executed, skipped, failed)",
			},
			[]string{"outcome"},
		),

		translationCacheTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "translation_cache_lookups_total",
				Help:      "Translation dictionary lookups by result (hit, miss)",
			},
			[]string{"result"},
		),
	}
}

// Handler serves the registry in the prometheus text format
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Registry exposes the underlying registry, mainly for tests
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// RecordHTTPRequest counts one request. path is the route template, not the raw URL.
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if c == nil {
		return
	}
	c.httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordSearch counts a link search. outcome is ok, unknown_doctype or error.
// doctype must be a registered name or empty; callers never pass request input.
func (c *Collector) RecordSearch(doctype, outcome string, results int, duration time.Duration) {
	if c == nil {
		return
	}
	c.searchRequestsTotal.WithLabelValues(doctype, outcome).Inc()
	if outcome == "ok" {
		c.searchResults.WithLabelValues(doctype).Observe(float64(results))
	}
	c.searchDuration.WithLabelValues(doctype).Observe(duration.Seconds())
}

// RecordPatchRun counts one patch execution attempt
func (c *Collector) RecordPatchRun(outcome string) {
	if c == nil {
		return
	}
	c.patchRunsTotal.WithLabelValues(outcome).Inc()
}

// RecordTranslationLookup counts a dictionary cache hit or miss
func (c *Collector) RecordTranslationLookup(hit bool) {
	if c == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	c.translationCacheTotal.WithLabelValues(result).Inc()
}
