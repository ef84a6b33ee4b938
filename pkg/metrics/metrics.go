// Package metrics documents the Prometheus metrics exposed by the
// library. Metrics are defined next to the code they instrument (client,
// ratelimit, fetcher) via promauto and land on the default registry;
// this package is the catalog and the place to grab the registry from.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the Prometheus registerer all library metrics register
// against.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - pubproxy_requests_total{status} (Counter): Listing requests by HTTP
//     status ("network_error" / "read_error" for transport failures)
//   - pubproxy_request_duration_seconds (Histogram): Round-trip duration
//   - pubproxy_fetch_errors_total{kind} (Counter): Failures by kind
//     (network, status, payload)
//
// Gate Metrics (pkg/ratelimit):
//   - pubproxy_gate_wait_seconds (Histogram): Time blocked acquiring the
//     shared gate
//   - pubproxy_gate_poison_recoveries_total (Counter): Abandoned-gate
//     recoveries (timer reset to now)
//
// Fulfillment Metrics (pkg/fetcher):
//   - pubproxy_fetches_total{tier} (Counter): Remote batch fetches by
//     tier (rate-limited, unlimited)
//   - pubproxy_buffer_served_total (Counter): Records handed to callers
//     straight from a buffer, no remote call
//
// Example Prometheus Queries:
//
//   # Share of demand served without contacting the service
//   rate(pubproxy_buffer_served_total[5m]) /
//   (rate(pubproxy_buffer_served_total[5m]) + 5 * rate(pubproxy_fetches_total[5m]))
//
//   # P95 gate contention
//   histogram_quantile(0.95, rate(pubproxy_gate_wait_seconds_bucket[5m]))
//
//   # Fetch error rate by kind
//   rate(pubproxy_fetch_errors_total[5m])
