package es

import (
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

type valueOption[T any] struct{ v T }

type (
	// IDGenerator produces envelope and snapshot ids.
	IDGenerator func() string
	// Clock returns the timestamp stamped on new envelopes.
	Clock func() time.Time
)

// DefaultIDGenerator returns nanoid based ids.
func DefaultIDGenerator() IDGenerator {
	return func() string { return gonanoid.Must() }
}

type (
	repoOpts struct {
		snapshotter Snapshotter
		idGenerator IDGenerator
		clock       Clock
		metrics     ESMetrics
	}

	repoSaveOptions struct{ snapshot bool }
	repoLoadOptions struct{ snapshot bool }

	RepositoryOption interface{ applyToRepository(*repoOpts) }
	SaveOption       interface{ applyToSaveOptions(*repoSaveOptions) }
	LoadOption       interface{ applyToLoadOptions(*repoLoadOptions) }

	SnapshotterOption     valueOption[Snapshotter]
	SnapshotOption        valueOption[bool]
	RepoIDGeneratorOption valueOption[IDGenerator]
	RepoClockOption       valueOption[Clock]
	ESMetricsOption       valueOption[ESMetrics]
)

// WithSnapshotter sets the snapshot storage used by WithSnapshot(true).
func WithSnapshotter(s Snapshotter) SnapshotterOption { return SnapshotterOption{v: s} }

// WithSnapshot enables loading from / writing a snapshot.
func WithSnapshot(enabled bool) SnapshotOption { return SnapshotOption{v: enabled} }

// WithIDGenerator sets a custom generator for envelope ids.
func WithIDGenerator(gen IDGenerator) RepoIDGeneratorOption { return RepoIDGeneratorOption{v: gen} }

// WithClock sets the time source for envelope timestamps.
func WithClock(c Clock) RepoClockOption { return RepoClockOption{v: c} }

// WithMetrics sets the metrics implementation.
func WithMetrics(m ESMetrics) ESMetricsOption { return ESMetricsOption{v: m} }

func (o SnapshotterOption) applyToRepository(r *repoOpts)     { r.snapshotter = o.v }
func (o RepoIDGeneratorOption) applyToRepository(r *repoOpts) { r.idGenerator = o.v }
func (o RepoClockOption) applyToRepository(r *repoOpts)       { r.clock = o.v }
func (o ESMetricsOption) applyToRepository(r *repoOpts)       { r.metrics = o.v }

func (o SnapshotOption) applyToSaveOptions(s *repoSaveOptions) { s.snapshot = o.v }
func (o SnapshotOption) applyToLoadOptions(l *repoLoadOptions) { l.snapshot = o.v }

func newRepoOpts(opts ...RepositoryOption) repoOpts {
	options := repoOpts{
		idGenerator: DefaultIDGenerator(),
		clock:       time.Now,
		metrics:     NopESMetrics(),
	}
	for _, opt := range opts {
		opt.applyToRepository(&options)
	}
	return options
}

func newSaveOptions(opts ...SaveOption) repoSaveOptions {
	options := repoSaveOptions{}
	for _, opt := range opts {
		opt.applyToSaveOptions(&options)
	}
	return options
}

func newLoadOptions(opts ...LoadOption) repoLoadOptions {
	options := repoLoadOptions{}
	for _, opt := range opts {
		opt.applyToLoadOptions(&options)
	}
	return options
}
