// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package metrics exposes the control plane's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds the counters and the gauge updated by the executor,
// invalidator, and mode gate. UpstreamCallLatency is registered and
// exposed, but no component records observations into it.
type Collector struct {
	BansTotal          *prometheus.CounterVec
	UnbansTotal         *prometheus.CounterVec
	InvalidationsTotal  prometheus.Counter
	InvalidationErrors  prometheus.Counter
	UpstreamCallLatency *prometheus.HistogramVec
	DryRun              prometheus.Gauge
}

// NewCollector registers every metric against reg and returns the handles
// used to record them. Passing a fresh prometheus.Registry per instance
// keeps tests free of global-registry collisions.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		BansTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "firewall_executor_bans_total",
			Help: "Ban requests processed, partitioned by outcome.",
		}, []string{"outcome"}),
		UnbansTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "firewall_executor_unbans_total",
			Help: "Unban requests processed, partitioned by outcome.",
		}, []string{"outcome"}),
		InvalidationsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "firewall_executor_invalidations_total",
			Help: "Nongratas reclaimed by the periodic invalidator.",
		}),
		InvalidationErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "firewall_executor_invalidation_tick_errors_total",
			Help: "Invalidator ticks aborted by an upstream or store error.",
		}),
		UpstreamCallLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "firewall_executor_upstream_call_duration_seconds",
			Help:    "Latency of calls to the upstream CDN REST API.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		DryRun: factory.NewGauge(prometheus.GaugeOpts{
			Name: "firewall_executor_dry_run",
			Help: "1 when the mode gate is routing to the dry-run executor.",
		}),
	}
}
