// Package metrics provides Prometheus metrics for the dev server.
package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Default histogram buckets for request latency.
var defaultBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}

// ownRoutes are devproxy's endpoints besides the metrics path.
var ownRoutes = []string{"/healthz", "/__devproxy/status"}

// DefaultPath is the metrics path label used when New gets an empty path.
const DefaultPath = "/metrics"

// frontendLabel is the path label for everything served by the plugin pipeline.
const frontendLabel = "frontend"

// Metrics holds all Prometheus metric collectors for the dev server.
type Metrics struct {
	Registry *prometheus.Registry

	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	UpstreamDuration  *prometheus.HistogramVec
	UpstreamResponses *prometheus.CounterVec

	AssetChanges prometheus.Counter

	// reservedRoutes match exactly or by sub-path; proxyPrefixes by plain prefix.
	reservedRoutes []string
	proxyPrefixes  []string
}

// New creates a Metrics instance with a custom registry and all collectors registered.
// metricsPath is where the registry is exposed ("" means DefaultPath).
// proxyPrefixes are the configured proxy rule prefixes; they become the only
// path label values besides devproxy's own routes and "frontend".
func New(metricsPath string, proxyPrefixes ...string) *Metrics {
	if metricsPath == "" {
		metricsPath = DefaultPath
	}

	reg := prometheus.NewRegistry()

	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		Registry: reg,

		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "devproxy_http_requests_total",
			Help: "Total inbound HTTP requests.",
		}, []string{"method", "status_code", "path_prefix"}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "devproxy_http_request_duration_seconds",
			Help:    "Inbound HTTP request latency in seconds.",
			Buckets: defaultBuckets,
		}, []string{"method", "status_code", "path_prefix"}),

		RequestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "devproxy_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed.",
		}),

		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "devproxy_upstream_request_duration_seconds",
			Help:    "Upstream call latency in seconds.",
			Buckets: defaultBuckets,
		}, []string{"method", "upstream"}),

		UpstreamResponses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "devproxy_upstream_responses_total",
			Help: "Total upstream responses by method, upstream host and status code.",
		}, []string{"method", "upstream", "status_code"}),

		AssetChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "devproxy_asset_changes_total",
			Help: "Debounced change batches observed in the static root.",
		}),

		reservedRoutes: append(append([]string(nil), ownRoutes...), metricsPath),
		proxyPrefixes:  append([]string(nil), proxyPrefixes...),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.RequestsInFlight,
		m.UpstreamDuration,
		m.UpstreamResponses,
		m.AssetChanges,
	)

	return m
}

// knownMethods lists the allowed HTTP method label values (bounded cardinality).
var knownMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "DELETE": true,
	"PATCH": true, "HEAD": true, "OPTIONS": true,
}

// NormalizeMethod returns a bounded HTTP method label for Prometheus metrics.
// Non-standard methods are mapped to "other" to prevent cardinality explosion.
func NormalizeMethod(method string) string {
	if knownMethods[method] {
		return method
	}
	return "other"
}

// NormalizePath returns a bounded path label for Prometheus metrics.
// Proxy prefixes match the same way proxy rules do: by plain string prefix.
func (m *Metrics) NormalizePath(path string) string {
	for _, prefix := range m.reservedRoutes {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return prefix
		}
	}
	for _, prefix := range m.proxyPrefixes {
		if strings.HasPrefix(path, prefix) {
			return prefix
		}
	}
	return frontendLabel
}
