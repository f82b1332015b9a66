// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "quantdash"

// Metrics groups every collector the service updates.
type Metrics struct {
	registry *prometheus.Registry

	AnalysesTotal       *prometheus.CounterVec
	CommentaryTotal     *prometheus.CounterVec
	CacheLookups        *prometheus.CounterVec
	UpstreamDuration    *prometheus.HistogramVec
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates the collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		AnalysesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Analyses served, by kind and outcome.",
		}, []string{"kind", "outcome"}),
		CommentaryTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commentary_total",
			Help:      "AI commentary attempts, by resulting state.",
		}, []string{"state"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commentary_cache_lookups_total",
			Help:      "Commentary cache lookups, by result.",
		}, []string{"result"}),
		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Latency of calls to external services.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"target", "result"}),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests, by route and status.",
		}, []string{"route", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
	m.registry.MustRegister(
		m.AnalysesTotal,
		m.CommentaryTotal,
		m.CacheLookups,
		m.UpstreamDuration,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveUpstream records one external call.
func (m *Metrics) ObserveUpstream(target string, start time.Time, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.UpstreamDuration.WithLabelValues(target, result).Observe(time.Since(start).Seconds())
}

// CountAnalysis records one finished analysis.
func (m *Metrics) CountAnalysis(kind, outcome string) {
	if m == nil {
		return
	}
	m.AnalysesTotal.WithLabelValues(kind, outcome).Inc()
}

// CountCommentary records one commentary attempt.
func (m *Metrics) CountCommentary(state string) {
	if m == nil {
		return
	}
	m.CommentaryTotal.WithLabelValues(state).Inc()
}

// CountCacheLookup records a cache hit or miss.
func (m *Metrics) CountCacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheLookups.WithLabelValues("hit").Inc()
		return
	}
	m.CacheLookups.WithLabelValues("miss").Inc()
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(route string, status int, start time.Time) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
}
