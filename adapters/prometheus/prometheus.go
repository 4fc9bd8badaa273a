// Package prometheus provides Prometheus implementations of the metrics
// interfaces of the event store (es.ESMetrics) and the command bus
// (cqrs.BusMetrics).
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/codewandler/qpool-go/core/metrics"
)

// newTimer starts a Prometheus timer on h and stops it on ObserveDuration.
func newTimer(h prometheus.Observer) metrics.Timer {
	t := prometheus.NewTimer(h)
	return metrics.TimerFunc(func() { t.ObserveDuration() })
}

const namespace = "qpool"

// Default histogram buckets for latency metrics (in seconds).
var defaultBuckets = []float64{
	.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10,
}

// AllMetrics holds the Prometheus implementations for the event store and
// the command bus, registered on one Registerer.
type AllMetrics struct {
	ES  *esMetrics
	Bus *busMetrics
}

func NewAllMetrics(reg prometheus.Registerer) *AllMetrics {
	return &AllMetrics{
		ES:  newESMetrics(reg),
		Bus: newBusMetrics(reg),
	}
}
