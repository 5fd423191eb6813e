package audit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	emittedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bulwark_audit_emitted_total",
		Help: "Audit entries accepted onto the queue by final status.",
	}, []string{"status"})

	droppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bulwark_audit_dropped_total",
		Help: "Audit entries dropped because the queue was full.",
	})

	writeErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bulwark_audit_write_errors_total",
		Help: "Audit sink write failures.",
	})
)
