package moderation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var enforcementCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "modbot_enforcement_actions_total",
	Help: "Enforcement actions by kind and outcome",
}, []string{"action", "success"})

var enforcementDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name: "modbot_enforcement_duration_sec",
	Help: "Duration of moderation API calls",
}, []string{"action"})
