package es

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Projection builds a read model from persisted events.
type Projection interface {
	Name() string
	// Handle is called once per event in store order.
	Handle(ctx context.Context, env Envelope, event any) error
}

type (
	projectorOpts struct {
		cp        CpStore
		batchSize int
		metrics   ESMetrics
	}
	ProjectorOption interface{ applyToProjector(*projectorOpts) }

	CpStoreOption   valueOption[CpStore]
	BatchSizeOption valueOption[int]
)

// WithCheckpointStore sets where the projector records its position.
func WithCheckpointStore(cp CpStore) CpStoreOption { return CpStoreOption{v: cp} }

// WithBatchSize sets how many events are read from the feed per request.
func WithBatchSize(n int) BatchSizeOption { return BatchSizeOption{v: n} }

func (o CpStoreOption) applyToProjector(p *projectorOpts)   { p.cp = o.v }
func (o BatchSizeOption) applyToProjector(p *projectorOpts) { p.batchSize = o.v }
func (o ESMetricsOption) applyToProjector(p *projectorOpts) { p.metrics = o.v }

// Projector pulls events from a Feed into a Projection. Events whose type is
// not registered are skipped.
type Projector struct {
	mu       sync.Mutex
	log      *slog.Logger
	feed     Feed
	registry *EventRegistry
	proj     Projection
	opts     projectorOpts
}

func NewProjector(
	log *slog.Logger,
	feed Feed,
	registry *EventRegistry,
	proj Projection,
	opts ...ProjectorOption,
) *Projector {
	if log == nil {
		log = slog.Default()
	}
	options := projectorOpts{cp: NewInMemCpStore(), batchSize: 256, metrics: NopESMetrics()}
	for _, opt := range opts {
		opt.applyToProjector(&options)
	}
	if options.batchSize <= 0 {
		options.batchSize = 256
	}
	return &Projector{
		log:      log.With(slog.String("projection", proj.Name())),
		feed:     feed,
		registry: registry,
		proj:     proj,
		opts:     options,
	}
}

func (p *Projector) Projection() Projection { return p.proj }

// CatchUp feeds every event after the checkpoint to the projection and
// returns how many were handled. When the projection fails, the checkpoint
// still moves past the events handled before the failure.
func (p *Projector) CatchUp(ctx context.Context) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	lastSeq, err := p.opts.cp.Get()
	if err != nil {
		return 0, fmt.Errorf("read checkpoint: %w", err)
	}

	handled := 0
	fail := func(err error) (int, error) {
		if cpErr := p.opts.cp.Set(lastSeq); cpErr != nil {
			err = errors.Join(err, fmt.Errorf("write checkpoint: %w", cpErr))
		}
		if handled > 0 {
			p.opts.metrics.EventsProjected(p.proj.Name(), handled)
		}
		return handled, err
	}

	for {
		batch, err := p.feed.ReadAll(ctx, lastSeq, p.opts.batchSize)
		if err != nil {
			return fail(fmt.Errorf("read feed after %d: %w", lastSeq, err))
		}
		if len(batch) == 0 {
			break
		}

		for i, env := range batch {
			// events of one append may share a Seq, a Seq is done once the next one starts
			if i > 0 && env.Seq != batch[i-1].Seq {
				lastSeq = batch[i-1].Seq
			}

			ev, err := p.registry.Decode(env)
			switch {
			case errors.Is(err, ErrUnknownEventType):
				p.log.Debug("skip", slog.String("type", env.Type), slog.Uint64("seq", env.Seq))
			case err != nil:
				return fail(fmt.Errorf("decode seq=%d: %w", env.Seq, err))
			default:
				if err := p.proj.Handle(ctx, env, ev); err != nil {
					return fail(fmt.Errorf("handle seq=%d: %w", env.Seq, err))
				}
				handled++
			}
		}

		// events sharing a Seq always arrive in the same batch
		lastSeq = batch[len(batch)-1].Seq
		if err := p.opts.cp.Set(lastSeq); err != nil {
			return handled, fmt.Errorf("write checkpoint: %w", err)
		}
	}

	if handled > 0 {
		p.opts.metrics.EventsProjected(p.proj.Name(), handled)
		p.log.Debug("caught up", slog.Int("handled", handled), slog.Uint64("seq", lastSeq))
	}
	return handled, nil
}
