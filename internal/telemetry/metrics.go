package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTPRequestDuration tracks raw HTTP request latency by route, independent
// of the RPC-level RequestDuration keyed by op.
var HTTPRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "bridgecore",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"method", "path", "status"},
)

// NewMetricsRegistry creates a Prometheus registry with Go/process
// collectors, HTTPRequestDuration, and every BridgeCore-specific metric.
func NewMetricsRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	reg.MustRegister(HTTPRequestDuration)
	for _, c := range All() {
		reg.MustRegister(c)
	}
	return reg
}

var RequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "bridgecore",
		Name:      "requests_total",
		Help:      "Total number of RPC gateway requests.",
	},
	[]string{"tenant", "op", "status"},
)

var RequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "bridgecore",
		Name:      "request_duration_seconds",
		Help:      "RPC gateway request duration in seconds.",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	},
	[]string{"op"},
)

var CacheHitsTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "bridgecore",
		Name:      "cache_hits_total",
		Help:      "Total number of read-through cache hits.",
	},
)

var CacheMissesTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "bridgecore",
		Name:      "cache_misses_total",
		Help:      "Total number of read-through cache misses.",
	},
)

var RateLimitDeniedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "bridgecore",
		Name:      "ratelimit_denied_total",
		Help:      "Total number of requests denied by the rate limiter, by scope.",
	},
	[]string{"tenant", "scope"},
)

var UpstreamErrorsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "bridgecore",
		Name:      "upstream_errors_total",
		Help:      "Total number of upstream ERP errors, by kind.",
	},
	[]string{"tenant", "kind"},
)

var EventsIngestedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "bridgecore",
		Name:      "events_ingested_total",
		Help:      "Total number of events ingested from upstream, by tenant.",
	},
	[]string{"tenant"},
)

var CursorLag = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "bridgecore",
		Name:      "cursor_lag",
		Help:      "Difference between a tenant's max event id and its minimum active cursor position.",
	},
	[]string{"tenant"},
)

var QueueDepth = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "bridgecore",
		Name:      "queue_depth",
		Help:      "Pending record count in a ledger writer queue.",
	},
	[]string{"queue"},
)

// All returns every BridgeCore metric for registration.
func All() []prometheus.Collector {
	return []prometheus.Collector{
		RequestsTotal,
		RequestDuration,
		CacheHitsTotal,
		CacheMissesTotal,
		RateLimitDeniedTotal,
		UpstreamErrorsTotal,
		EventsIngestedTotal,
		CursorLag,
		QueueDepth,
	}
}
