package dlp

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var scanMatches = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "bulwark_dlp_pattern_matches_total",
	Help: "DLP pattern matches by pattern name",
}, []string{"pattern"})
