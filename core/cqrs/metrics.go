package cqrs

import "github.com/codewandler/qpool-go/core/metrics"

// Outcomes reported to BusMetrics.CommandHandled.
const (
	OutcomeOK           = "ok"
	OutcomeUnregistered = "unregistered"
	OutcomeDenied       = "denied"
	OutcomeFailed       = "failed"
)

// BusMetrics is reported by the Bus. Implementations must be safe for
// concurrent use.
type BusMetrics interface {
	CommandDuration(cmdType string) metrics.Timer
	CommandHandled(cmdType string, outcome string)
}

type nopBusMetrics struct{}

func (nopBusMetrics) CommandDuration(string) metrics.Timer { return metrics.NopTimer() }
func (nopBusMetrics) CommandHandled(string, string)        {}

// NopBusMetrics returns a BusMetrics that records nothing.
func NopBusMetrics() BusMetrics { return nopBusMetrics{} }
