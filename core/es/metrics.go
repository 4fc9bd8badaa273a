package es

import "github.com/codewandler/qpool-go/core/metrics"

// ESMetrics is reported by repositories, projectors and store adapters.
// Implementations must be safe for concurrent use.
type ESMetrics interface {
	StoreLoadDuration(aggType string) metrics.Timer
	StoreAppendDuration(aggType string) metrics.Timer
	EventsAppended(aggType string, count int)

	RepoLoadDuration(aggType string) metrics.Timer
	RepoSaveDuration(aggType string) metrics.Timer
	ConcurrencyConflict(aggType string)

	SnapshotLoadDuration(aggType string) metrics.Timer
	SnapshotSaveDuration(aggType string) metrics.Timer

	EventsProjected(projection string, count int)
}

type nopESMetrics struct{}

func (nopESMetrics) StoreLoadDuration(string) metrics.Timer    { return metrics.NopTimer() }
func (nopESMetrics) StoreAppendDuration(string) metrics.Timer  { return metrics.NopTimer() }
func (nopESMetrics) EventsAppended(string, int)                {}
func (nopESMetrics) RepoLoadDuration(string) metrics.Timer     { return metrics.NopTimer() }
func (nopESMetrics) RepoSaveDuration(string) metrics.Timer     { return metrics.NopTimer() }
func (nopESMetrics) ConcurrencyConflict(string)                {}
func (nopESMetrics) SnapshotLoadDuration(string) metrics.Timer { return metrics.NopTimer() }
func (nopESMetrics) SnapshotSaveDuration(string) metrics.Timer { return metrics.NopTimer() }
func (nopESMetrics) EventsProjected(string, int)               {}

// NopESMetrics returns an ESMetrics that records nothing.
func NopESMetrics() ESMetrics { return nopESMetrics{} }
