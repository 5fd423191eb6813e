package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bulwark_dispatch_requests_total",
		Help: "Dispatched requests by target and outcome.",
	}, []string{"target", "outcome"})

	fallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bulwark_dispatch_fallbacks_total",
		Help: "Fallback attempts by the primary target that failed.",
	}, []string{"target"})

	latencySeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bulwark_dispatch_latency_seconds",
		Help:    "Upstream call latency, adapter call only.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
	}, []string{"target"})

	costUSDTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bulwark_dispatch_cost_usd_total",
		Help: "Accumulated upstream spend in USD by target.",
	}, []string{"target"})
)
