package policy

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var evaluationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "bulwark_policy_evaluations_total",
	Help: "Authorization decisions by outcome.",
}, []string{"outcome"})
