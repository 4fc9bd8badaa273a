// Package service is the question pool facade. Writes are turned into
// commands and dispatched through a command bus, reads replay the pool from
// the event store.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/codewandler/qpool-go/core/cqrs"
	"github.com/codewandler/qpool-go/core/es"
	"github.com/codewandler/qpool-go/core/perkey"
	"github.com/codewandler/qpool-go/questionpool"
)

var (
	ErrListingUnavailable = errors.New("pool listing needs a store with a global feed")
)

type Filter = questionpool.Filter

type Config struct {
	Log   *slog.Logger // Log for diagnostics (optional)
	Store es.EventStore

	// Snapshotter stores pool snapshots. Snapshots enables reading from and
	// writing to it on every load and save.
	Snapshotter es.Snapshotter
	Snapshots   bool

	// Access guards every command. Defaults to cqrs.OpenAccess().
	Access cqrs.AccessPolicy

	// ConfigurationTypes decodes stored configurations. Only registered
	// types can be set.
	ConfigurationTypes *questionpool.ConfigurationTypes

	// NewID generates pool ids. Defaults to uuid.New.
	NewID func() questionpool.ID

	// SerializePerPool runs the writes of one pool one at a time inside this
	// process, from loading the pool until its events are stored. Writers in
	// other processes are still only stopped by the store's version check.
	SerializePerPool bool

	ESMetrics  es.ESMetrics
	BusMetrics cqrs.BusMetrics
}

type Service struct {
	log       *slog.Logger
	store     es.EventStore
	bus       *cqrs.Bus
	h         *handlers
	types     *questionpool.ConfigurationTypes
	newID     func() questionpool.ID
	list      *questionpool.PoolList
	projector *es.Projector
	pools     *perkey.Locker[string] // nil unless SerializePerPool
}

func New(cfg Config) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("store is required")
	}
	if cfg.Snapshots && cfg.Snapshotter == nil {
		return nil, es.ErrSnapshotterUnconfigured
	}

	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("service", "question_pool"))

	access := cfg.Access
	if access == nil {
		access = cqrs.OpenAccess()
	}
	types := cfg.ConfigurationTypes
	if types == nil {
		types = questionpool.NewConfigurationTypes()
	}
	newID := cfg.NewID
	if newID == nil {
		newID = uuid.New
	}

	var repoOpts []es.RepositoryOption
	if cfg.Snapshotter != nil {
		repoOpts = append(repoOpts, es.WithSnapshotter(cfg.Snapshotter))
	}
	if cfg.ESMetrics != nil {
		repoOpts = append(repoOpts, es.WithMetrics(cfg.ESMetrics))
	}

	registry := es.NewRegistry()
	h := &handlers{
		repo: es.NewTypedRepository[*questionpool.Pool](log, cfg.Store, registry, repoOpts...),
	}
	if cfg.Snapshots {
		h.loadOpts = []es.LoadOption{es.WithSnapshot(true)}
		h.saveOpts = []es.SaveOption{es.WithSnapshot(true)}
	}

	var busOpts []cqrs.BusOption
	if cfg.BusMetrics != nil {
		busOpts = append(busOpts, cqrs.WithBusMetrics(cfg.BusMetrics))
	}
	bus, err := cqrs.NewBus(log, h.registrations(access), busOpts...)
	if err != nil {
		return nil, err
	}

	s := &Service{
		log:   log,
		store: cfg.Store,
		bus:   bus,
		h:     h,
		types: types,
		newID: newID,
		list:  questionpool.NewPoolList(),
	}
	if cfg.SerializePerPool {
		s.pools = perkey.New[string]()
	}

	// the pool list lives in memory and is rebuilt from the start of the feed
	if feed, ok := cfg.Store.(es.Feed); ok {
		var projOpts []es.ProjectorOption
		if cfg.ESMetrics != nil {
			projOpts = append(projOpts, es.WithMetrics(cfg.ESMetrics))
		}
		s.projector = es.NewProjector(log, feed, registry, s.list, projOpts...)
	}

	return s, nil
}

// Dispatch sends cmd through the command bus. Commands of this package wait
// for other writes to the same pool when SerializePerPool is set.
func (s *Service) Dispatch(ctx context.Context, cmd cqrs.Command) error {
	k, ok := cmd.(keyed)
	if !ok {
		return s.bus.Handle(ctx, cmd)
	}
	return s.serialize(ctx, k.poolKey(), func() error {
		return s.bus.Handle(ctx, cmd)
	})
}

// serialize runs fn holding the slot of pool key. Without SerializePerPool
// it just runs fn.
func (s *Service) serialize(ctx context.Context, key string, fn func() error) error {
	if s.pools == nil {
		return fn()
	}
	return s.pools.Do(ctx, key, fn)
}

// CreateQuestionPool creates a pool and returns its id. A new id is generated
// when id is nil.
func (s *Service) CreateQuestionPool(ctx context.Context, name, description *string, id *questionpool.ID) (questionpool.ID, error) {
	poolID := s.newID()
	if id != nil {
		poolID = *id
	}
	data := questionpool.Data{Name: name, Description: description}
	if err := s.Dispatch(ctx, CreatePool{ID: poolID, Data: data}); err != nil {
		return uuid.Nil, err
	}
	s.log.Debug("pool created", slog.String("pool", poolID.String()))
	return poolID, nil
}

func (s *Service) AddQuestion(ctx context.Context, poolID, questionID questionpool.ID) error {
	return s.Dispatch(ctx, AddQuestion{PoolID: poolID, QuestionID: questionID})
}

func (s *Service) RemoveQuestion(ctx context.Context, poolID, questionID questionpool.ID) error {
	return s.Dispatch(ctx, RemoveQuestion{PoolID: poolID, QuestionID: questionID})
}

// GetPool replays the pool. Deleted pools are returned too.
func (s *Service) GetPool(ctx context.Context, poolID questionpool.ID) (*questionpool.Pool, error) {
	return s.h.load(ctx, poolID)
}

// mutate loads the pool, applies fn in memory and dispatches StorePool. The
// pool's slot is held across all three steps, so StorePool goes to the bus
// directly.
func (s *Service) mutate(ctx context.Context, poolID questionpool.ID, fn func(p *questionpool.Pool) error) error {
	return s.serialize(ctx, poolID.String(), func() error {
		p, err := s.GetPool(ctx, poolID)
		if err != nil {
			return err
		}
		if err := fn(p); err != nil {
			return err
		}
		return s.bus.Handle(ctx, StorePool{Pool: p})
	})
}

// StorePoolData replaces name and description. The caller is recorded as
// the editor.
func (s *Service) StorePoolData(ctx context.Context, poolID questionpool.ID, data questionpool.Data) error {
	return s.mutate(ctx, poolID, func(p *questionpool.Pool) error {
		return p.SetData(data, callerID(ctx))
	})
}

func (s *Service) GetPoolData(ctx context.Context, poolID questionpool.ID) (questionpool.Data, error) {
	p, err := s.GetPool(ctx, poolID)
	if err != nil {
		return questionpool.Data{}, err
	}
	return p.Data(), nil
}

func (s *Service) SetConfiguration(ctx context.Context, poolID questionpool.ID, cfg questionpool.Configuration, configFor string) error {
	value, err := s.types.Encode(cfg)
	if err != nil {
		return fmt.Errorf("%w: %w", es.ErrValidationFailed, err)
	}
	return s.mutate(ctx, poolID, func(p *questionpool.Pool) error {
		return p.SetConfiguration(configFor, value)
	})
}

// GetConfiguration returns nil and no error when nothing is stored under
// configFor.
func (s *Service) GetConfiguration(ctx context.Context, poolID questionpool.ID, configFor string) (questionpool.Configuration, error) {
	p, err := s.GetPool(ctx, poolID)
	if err != nil {
		return nil, err
	}
	value, ok := p.Configuration(configFor)
	if !ok {
		return nil, nil
	}
	return s.types.Decode(value)
}

func (s *Service) GetConfigurations(ctx context.Context, poolID questionpool.ID) (map[string]questionpool.Configuration, error) {
	p, err := s.GetPool(ctx, poolID)
	if err != nil {
		return nil, err
	}
	values := p.Configurations()
	out := make(map[string]questionpool.Configuration, len(values))
	for tag, value := range values {
		cfg, err := s.types.Decode(value)
		if err != nil {
			return nil, fmt.Errorf("configuration %s: %w", tag, err)
		}
		out[tag] = cfg
	}
	return out, nil
}

func (s *Service) RemoveConfiguration(ctx context.Context, poolID questionpool.ID, configFor string) error {
	return s.mutate(ctx, poolID, func(p *questionpool.Pool) error {
		return p.RemoveConfiguration(configFor)
	})
}

// GetQuestionsOfPool returns the question ids in insertion order.
func (s *Service) GetQuestionsOfPool(ctx context.Context, poolID questionpool.ID) ([]questionpool.ID, error) {
	p, err := s.GetPool(ctx, poolID)
	if err != nil {
		return nil, err
	}
	return p.Questions(), nil
}

// GetPools brings the pool list up to date and returns the live pools
// matching filter. A nil filter matches all pools.
func (s *Service) GetPools(ctx context.Context, filter *Filter) ([]questionpool.ListItem, error) {
	if s.projector == nil {
		return nil, ErrListingUnavailable
	}
	if _, err := s.projector.CatchUp(ctx); err != nil {
		return nil, fmt.Errorf("update pool list: %w", err)
	}
	return s.list.Items(filter), nil
}

func (s *Service) DeletePool(ctx context.Context, poolID questionpool.ID) error {
	return s.Dispatch(ctx, DeletePool{PoolID: poolID})
}

// History returns the stored events of a pool in version order.
func (s *Service) History(ctx context.Context, poolID questionpool.ID) ([]es.Envelope, error) {
	return s.store.Load(ctx, questionpool.AggregateType, poolID.String())
}
