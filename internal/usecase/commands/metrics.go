package commands

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var commandDispatchCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "modbot_command_dispatch_total",
	Help: "Command invocations by final dispatch state",
}, []string{"command", "result"})

var commandDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name: "modbot_command_duration_sec",
	Help: "Duration of command executions",
}, []string{"command"})

const (
	resultDenied    = "denied"
	resultCooldown  = "cooldown"
	resultOK        = "ok"
	resultUserError = "user_error"
	resultError     = "error"
)
