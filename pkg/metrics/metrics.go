// Package metrics provides the centralized Prometheus metrics registry
// for the pricing proxy. All metrics are defined in their respective
// packages (client, cache, ratelimit) to maintain modularity and avoid
// circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the proxy.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - pokepulse_cache_hits_total (Counter): Fresh entries served from cache
//   - pokepulse_cache_misses_total (Counter): Lookups with no usable entry
//   - pokepulse_cache_evictions_total (Counter): Stale entries removed on read
//   - pokepulse_cache_errors_total{operation} (Counter): Cache operation errors
//
// Upstream Request Metrics (pkg/client):
//   - pokepulse_upstream_requests_total{endpoint, status} (Counter): Requests by endpoint and HTTP status
//   - pokepulse_upstream_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - pokepulse_upstream_errors_total{class} (Counter): Errors by class (credential, client, server, network, decode)
//
// Credit Metrics (pkg/ratelimit):
//   - pokepulse_api_credits_remaining (Gauge): Credits remaining per the last upstream response
//   - pokepulse_api_credits_limit (Gauge): Credit limit per the last upstream response
//   - pokepulse_api_credit_observations_total (Counter): Responses that carried credit headers
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(pokepulse_cache_hits_total[5m])) /
//   (sum(rate(pokepulse_cache_hits_total[5m])) + sum(rate(pokepulse_cache_misses_total[5m])))
//
//   # Credit Burn Rate
//   rate(pokepulse_upstream_requests_total[1h])
//
//   # Credits Running Low
//   pokepulse_api_credits_remaining < 25
//
//   # P95 Upstream Latency
//   histogram_quantile(0.95, rate(pokepulse_upstream_request_duration_seconds_bucket[5m]))
