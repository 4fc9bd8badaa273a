package es

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
)

// Repository rehydrates aggregates and persists their staged events with
// optimistic concurrency.
type Repository interface {
	// Load replays the stream of agg (whose type and id must be set).
	// It fails with ErrAggregateNotFound when the stream is empty.
	Load(ctx context.Context, agg Aggregate, opts ...LoadOption) error
	// Save appends the staged events using the persisted version as the
	// expected version. On ErrConcurrencyConflict nothing is written and
	// the aggregate is left as it was.
	Save(ctx context.Context, agg Aggregate, opts ...SaveOption) error
	CreateSnapshot(ctx context.Context, agg Aggregate) (*Snapshot, error)
}

type repository struct {
	log      *slog.Logger
	store    EventStore
	registry *EventRegistry
	opts     repoOpts
}

func NewRepository(
	log *slog.Logger,
	store EventStore,
	registry *EventRegistry,
	opts ...RepositoryOption,
) Repository {
	if log == nil {
		log = slog.Default()
	}
	return &repository{
		log:      log.With(slog.String("repo", fmt.Sprintf("%T", store))),
		store:    store,
		registry: registry,
		opts:     newRepoOpts(opts...),
	}
}

func checkIdentity(agg Aggregate) error {
	if agg.GetAggType() == "" {
		return errors.New("aggregate type is empty")
	}
	if agg.GetID() == "" {
		return errors.New("aggregate id is empty")
	}
	return nil
}

func (r *repository) Load(ctx context.Context, agg Aggregate, opts ...LoadOption) error {
	if err := checkIdentity(agg); err != nil {
		return err
	}
	if len(agg.Uncommitted()) != 0 {
		return errors.New("aggregate has uncommitted events (dirty=true)")
	}

	var (
		aggType     = agg.GetAggType()
		aggID       = agg.GetID()
		loadOptions = newLoadOptions(opts...)
		log         = r.log.With(slog.Group("agg", slog.String("type", aggType), slog.String("id", aggID)))
	)
	defer r.opts.metrics.RepoLoadDuration(aggType).ObserveDuration()

	if loadOptions.snapshot {
		if err := r.applySnapshot(ctx, log, agg); err != nil {
			return err
		}
	}

	startVersion := agg.GetVersion() + 1
	log.Debug(
		"load",
		startVersion.SlogAttrWithKey("min_version"),
		slog.Bool("snapshot", loadOptions.snapshot),
	)

	timer := r.opts.metrics.StoreLoadDuration(aggType)
	loaded, err := r.store.Load(ctx, aggType, aggID, WithStartAtVersion(startVersion))
	timer.ObserveDuration()
	if err != nil {
		return fmt.Errorf("load %s/%s: %w", aggType, aggID, err)
	}

	for _, e := range loaded {
		expectVersion := agg.GetVersion() + 1
		if e.Version != expectVersion {
			return fmt.Errorf("load %s/%s: expect version %d, got %d", aggType, aggID, expectVersion, e.Version)
		}

		evt, err := r.registry.Decode(e)
		if err != nil {
			return fmt.Errorf("load %s/%s at version %d: %w", aggType, aggID, e.Version, err)
		}
		if err := agg.Apply(evt); err != nil {
			return fmt.Errorf("apply %s at version %d: %w", e.Type, e.Version, err)
		}

		agg.setVersion(e.Version)
		agg.setSeq(e.Seq)
	}

	if agg.GetVersion() == 0 {
		return fmt.Errorf("%w: %s/%s", ErrAggregateNotFound, aggType, aggID)
	}
	return nil
}

func (r *repository) applySnapshot(ctx context.Context, log *slog.Logger, agg Aggregate) error {
	if r.opts.snapshotter == nil {
		return ErrSnapshotterUnconfigured
	}

	timer := r.opts.metrics.SnapshotLoadDuration(agg.GetAggType())
	err := ApplySnapshot(ctx, r.opts.snapshotter, agg)
	timer.ObserveDuration()

	switch {
	case err == nil:
		log.Debug("snapshot applied", slog.Uint64("seq", agg.GetSeq()), agg.GetVersion().SlogAttr())
		return nil
	case errors.Is(err, ErrSnapshotNotFound):
		return nil
	case errors.Is(err, ErrSnapshotSchemaMismatch):
		log.Debug("snapshot ignored", slog.Any("error", err))
		return nil
	default:
		return fmt.Errorf("failed to apply snapshot: %w", err)
	}
}

func (r *repository) Save(ctx context.Context, agg Aggregate, saveOpts ...SaveOption) error {
	uncommitted := agg.Uncommitted()
	if len(uncommitted) == 0 {
		return nil
	}
	if err := checkIdentity(agg); err != nil {
		return err
	}

	var (
		aggType       = agg.GetAggType()
		aggID         = agg.GetID()
		saveOptions   = newSaveOptions(saveOpts...)
		expectVersion = agg.GetVersion()
	)
	defer r.opts.metrics.RepoSaveDuration(aggType).ObserveDuration()

	envelopes, err := NewEnvelopes(aggType, aggID, expectVersion, r.opts.idGenerator, r.opts.clock(), uncommitted...)
	if err != nil {
		return err
	}

	timer := r.opts.metrics.StoreAppendDuration(aggType)
	res, err := r.store.Append(ctx, aggType, aggID, expectVersion, envelopes)
	timer.ObserveDuration()
	if err != nil {
		if errors.Is(err, ErrConcurrencyConflict) {
			r.opts.metrics.ConcurrencyConflict(aggType)
		}
		return fmt.Errorf("failed to save agg_type=%s agg_id=%s: %w", aggType, aggID, err)
	}
	if res == nil {
		return errors.New("append returned nil result")
	}
	r.opts.metrics.EventsAppended(aggType, len(envelopes))

	agg.setSeq(res.LastSeq)
	agg.setVersion(expectVersion + Version(len(envelopes)))
	agg.ClearUncommitted()

	// the events are stored at this point, a missing snapshot only costs a replay
	if saveOptions.snapshot {
		if _, err := r.CreateSnapshot(ctx, agg); err != nil {
			r.log.Warn(
				"snapshot not saved",
				slog.String("agg_type", aggType),
				slog.String("agg_id", aggID),
				slog.Any("error", err),
			)
		}
	}

	r.log.Debug(
		"saved",
		slog.Group(
			"agg",
			slog.String("type", aggType),
			slog.String("id", aggID),
			slog.Uint64("seq", agg.GetSeq()),
			agg.GetVersion().SlogAttr(),
		),
		slog.Bool("snapshot", saveOptions.snapshot),
		slog.Int("num_events", len(envelopes)),
	)
	return nil
}

func (r *repository) CreateSnapshot(ctx context.Context, agg Aggregate) (*Snapshot, error) {
	if r.opts.snapshotter == nil {
		return nil, ErrSnapshotterUnconfigured
	}
	if len(agg.Uncommitted()) != 0 {
		return nil, errors.New("cannot snapshot aggregate with uncommitted events")
	}
	defer r.opts.metrics.SnapshotSaveDuration(agg.GetAggType()).ObserveDuration()

	ss, err := CreateSnapshot(agg, r.opts.idGenerator(), r.opts.clock())
	if err != nil {
		return nil, err
	}
	if err := r.opts.snapshotter.SaveSnapshot(ctx, ss); err != nil {
		return nil, fmt.Errorf("failed to save snapshot: %w", err)
	}
	r.log.Debug("snapshot saved", ss.logAttrs())
	return ss, nil
}

var _ Repository = &repository{}

// === TypedRepository ===

// TypedRepository is a Repository bound to one aggregate type.
type TypedRepository[T Aggregate] interface {
	GetAggType() string
	New() T
	NewWithID(id string) T
	Load(ctx context.Context, a T, opts ...LoadOption) error
	GetByID(ctx context.Context, aggID string, opts ...LoadOption) (T, error)
	Save(ctx context.Context, agg T, opts ...SaveOption) error
}

type typedRepo[T Aggregate] struct {
	r Repository
}

func (t *typedRepo[T]) New() T { return t.NewWithID("") }

func (t *typedRepo[T]) NewWithID(id string) T {
	var a T
	if rt := reflect.TypeFor[T](); rt.Kind() == reflect.Pointer {
		a = reflect.New(rt.Elem()).Interface().(T)
	}
	a.SetID(id)
	return a
}

func (t *typedRepo[T]) Load(ctx context.Context, a T, opts ...LoadOption) error {
	return t.r.Load(ctx, a, opts...)
}

func (t *typedRepo[T]) GetByID(ctx context.Context, aggID string, opts ...LoadOption) (a T, err error) {
	if aggID == "" {
		return a, errors.New("aggregate id is empty")
	}
	a = t.NewWithID(aggID)
	if err = t.r.Load(ctx, a, opts...); err != nil {
		return a, err
	}
	return a, nil
}

func (t *typedRepo[T]) Save(ctx context.Context, agg T, opts ...SaveOption) error {
	return t.r.Save(ctx, agg, opts...)
}

func (t *typedRepo[T]) GetAggType() string { return t.New().GetAggType() }

// NewTypedRepository builds a repository for T and registers the events of T
// with reg.
func NewTypedRepository[T Aggregate](
	log *slog.Logger,
	s EventStore,
	reg *EventRegistry,
	opts ...RepositoryOption,
) TypedRepository[T] {
	t := &typedRepo[T]{}
	t.New().Register(reg)
	t.r = NewRepository(log, s, reg, opts...)
	return t
}
