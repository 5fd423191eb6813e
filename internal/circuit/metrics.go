package circuit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	breakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "bulwark_circuit_state",
		Help: "Current breaker state per operation key (0=closed, 1=open, 2=half_open)",
	}, []string{"key"})

	breakerTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bulwark_circuit_transitions_total",
		Help: "Breaker state transitions per operation key",
	}, []string{"key", "from", "to"})

	breakerRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bulwark_circuit_rejections_total",
		Help: "Calls rejected without invocation because the circuit was open",
	}, []string{"key"})
)
