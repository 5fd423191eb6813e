package admission

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bulwark_admission_requests_total",
		Help: "Admission attempts by terminal status.",
	}, []string{"status"})

	durationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bulwark_admission_duration_seconds",
		Help:    "Wall-clock time of the full admission sequence.",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	})
)
