package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var decisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "bulwark_ratelimit_decisions_total",
	Help: "Rate limit decisions by scope and outcome",
}, []string{"scope", "outcome"})
