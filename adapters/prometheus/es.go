package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/codewandler/qpool-go/core/es"
	"github.com/codewandler/qpool-go/core/metrics"
)

// esMetrics implements es.ESMetrics. Every series is labelled by aggregate
// type, projection metrics by projection name.
type esMetrics struct {
	storeLoad   *prometheus.HistogramVec
	storeAppend *prometheus.HistogramVec
	appended    *prometheus.CounterVec

	repoLoad  *prometheus.HistogramVec
	repoSave  *prometheus.HistogramVec
	conflicts *prometheus.CounterVec

	snapshotLoad *prometheus.HistogramVec
	snapshotSave *prometheus.HistogramVec

	projected *prometheus.CounterVec
}

func latency(name, help string, label string) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "es",
		Name:      name + "_duration_seconds",
		Help:      help + " latency in seconds",
		Buckets:   defaultBuckets,
	}, []string{label})
}

func total(name, help string, label string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "es",
		Name:      name + "_total",
		Help:      help,
	}, []string{label})
}

// NewESMetrics registers the event store metrics on reg.
func NewESMetrics(reg prometheus.Registerer) es.ESMetrics {
	return newESMetrics(reg)
}

func newESMetrics(reg prometheus.Registerer) *esMetrics {
	const agg = "aggregate_type"
	m := &esMetrics{
		storeLoad:    latency("store_load", "Event store load", agg),
		storeAppend:  latency("store_append", "Event store append", agg),
		appended:     total("events_appended", "Events appended to the store", agg),
		repoLoad:     latency("repo_load", "Repository load including replay", agg),
		repoSave:     latency("repo_save", "Repository save", agg),
		conflicts:    total("concurrency_conflicts", "Appends rejected by the expected version check", agg),
		snapshotLoad: latency("snapshot_load", "Snapshot load", agg),
		snapshotSave: latency("snapshot_save", "Snapshot save", agg),
		projected:    total("events_projected", "Events handed to a projection", "projection"),
	}

	reg.MustRegister(
		m.storeLoad, m.storeAppend, m.appended,
		m.repoLoad, m.repoSave, m.conflicts,
		m.snapshotLoad, m.snapshotSave,
		m.projected,
	)
	return m
}

func (m *esMetrics) StoreLoadDuration(aggType string) metrics.Timer {
	return newTimer(m.storeLoad.WithLabelValues(aggType))
}

func (m *esMetrics) StoreAppendDuration(aggType string) metrics.Timer {
	return newTimer(m.storeAppend.WithLabelValues(aggType))
}

func (m *esMetrics) EventsAppended(aggType string, count int) {
	m.appended.WithLabelValues(aggType).Add(float64(count))
}

func (m *esMetrics) RepoLoadDuration(aggType string) metrics.Timer {
	return newTimer(m.repoLoad.WithLabelValues(aggType))
}

func (m *esMetrics) RepoSaveDuration(aggType string) metrics.Timer {
	return newTimer(m.repoSave.WithLabelValues(aggType))
}

func (m *esMetrics) ConcurrencyConflict(aggType string) {
	m.conflicts.WithLabelValues(aggType).Inc()
}

func (m *esMetrics) SnapshotLoadDuration(aggType string) metrics.Timer {
	return newTimer(m.snapshotLoad.WithLabelValues(aggType))
}

func (m *esMetrics) SnapshotSaveDuration(aggType string) metrics.Timer {
	return newTimer(m.snapshotSave.WithLabelValues(aggType))
}

func (m *esMetrics) EventsProjected(projection string, count int) {
	m.projected.WithLabelValues(projection).Add(float64(count))
}

var _ es.ESMetrics = (*esMetrics)(nil)
