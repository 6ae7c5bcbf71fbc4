// Package metrics provides the centralized Prometheus registry for the
// Criminal IP client. All metrics are defined in their respective packages
// (client, batch, cache) to maintain modularity and avoid circular
// dependencies.
//
// This package provides the HTTP exposition handler and a reference for all
// available metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the client.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the matching gatherer served by Handler.
var Gatherer = prometheus.DefaultGatherer

// Handler returns the /metrics exposition handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - ipintel_requests_total{endpoint, status} (Counter): Requests by endpoint and HTTP status
//   - ipintel_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - ipintel_request_errors_total{class} (Counter): Errors by class (client, server, network, decode, canceled)
//
// Batch Metrics (pkg/batch):
//   - ipintel_batch_runs_total{result} (Counter): Runs by result (completed, canceled, rejected)
//   - ipintel_batch_outcomes_total{outcome} (Counter): Targets by outcome (success, failure, dropped)
//   - ipintel_batch_inflight_lookups (Gauge): Lookups currently executing
//   - ipintel_batch_duration_seconds (Histogram): Wall-clock duration of runs
//
// Cache Metrics (pkg/cache):
//   - ipintel_cache_hits_total{layer="redis"} (Counter): Cache hits by layer
//   - ipintel_cache_misses_total (Counter): Cache misses
//   - ipintel_cache_stored_bytes_total (Counter): Bytes written to Redis
//   - ipintel_cache_errors_total{operation} (Counter): Cache operation errors
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(ipintel_cache_hits_total[5m])) /
//   (sum(rate(ipintel_cache_hits_total[5m])) + sum(rate(ipintel_cache_misses_total[5m])))
//
//   # Failed Target Ratio
//   rate(ipintel_batch_outcomes_total{outcome="failure"}[5m]) /
//   rate(ipintel_batch_outcomes_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(ipintel_request_duration_seconds_bucket[5m]))
