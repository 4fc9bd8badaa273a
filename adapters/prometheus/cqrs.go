package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/codewandler/qpool-go/core/cqrs"
	"github.com/codewandler/qpool-go/core/metrics"
)

// busMetrics implements cqrs.BusMetrics using Prometheus.
type busMetrics struct {
	commandDuration *prometheus.HistogramVec
	commandsTotal   *prometheus.CounterVec
}

// NewBusMetrics creates a new Prometheus implementation of BusMetrics.
func NewBusMetrics(reg prometheus.Registerer) cqrs.BusMetrics {
	return newBusMetrics(reg)
}

func newBusMetrics(reg prometheus.Registerer) *busMetrics {
	m := &busMetrics{
		commandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cqrs",
			Name:      "command_duration_seconds",
			Help:      "Command handling time in seconds",
			Buckets:   defaultBuckets,
		}, []string{"command_type"}),

		commandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cqrs",
			Name:      "commands_total",
			Help:      "Total number of commands dispatched, by outcome",
		}, []string{"command_type", "outcome"}),
	}

	reg.MustRegister(m.commandDuration, m.commandsTotal)
	return m
}

func (m *busMetrics) CommandDuration(cmdType string) metrics.Timer {
	return newTimer(m.commandDuration.WithLabelValues(cmdType))
}

func (m *busMetrics) CommandHandled(cmdType string, outcome string) {
	m.commandsTotal.WithLabelValues(cmdType, outcome).Inc()
}

var _ cqrs.BusMetrics = (*busMetrics)(nil)
