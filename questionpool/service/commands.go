package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/codewandler/qpool-go/core/cqrs"
	"github.com/codewandler/qpool-go/core/es"
	"github.com/codewandler/qpool-go/questionpool"
)

type (
	CreatePool struct {
		ID   questionpool.ID
		Data questionpool.Data
	}

	AddQuestion struct {
		PoolID     questionpool.ID
		QuestionID questionpool.ID
	}

	RemoveQuestion struct {
		PoolID     questionpool.ID
		QuestionID questionpool.ID
	}

	// StorePool persists a pool that was already mutated in memory.
	StorePool struct {
		Pool *questionpool.Pool
	}

	DeletePool struct {
		PoolID questionpool.ID
	}
)

func (CreatePool) CommandType() string     { return "question_pool.create" }
func (AddQuestion) CommandType() string    { return "question_pool.add_question" }
func (RemoveQuestion) CommandType() string { return "question_pool.remove_question" }
func (StorePool) CommandType() string      { return "question_pool.store" }
func (DeletePool) CommandType() string     { return "question_pool.delete" }

// keyed commands name the pool they change.
type keyed interface {
	poolKey() string
}

func (c CreatePool) poolKey() string     { return c.ID.String() }
func (c AddQuestion) poolKey() string    { return c.PoolID.String() }
func (c RemoveQuestion) poolKey() string { return c.PoolID.String() }
func (c DeletePool) poolKey() string     { return c.PoolID.String() }

func (c StorePool) poolKey() string {
	if c.Pool == nil {
		return ""
	}
	return c.Pool.ID().String()
}

type handlers struct {
	repo     es.TypedRepository[*questionpool.Pool]
	loadOpts []es.LoadOption
	saveOpts []es.SaveOption
}

func callerID(ctx context.Context) string {
	c, _ := cqrs.CallerFrom(ctx)
	return c.ID
}

func (h *handlers) registrations(access cqrs.AccessPolicy) []cqrs.Registration {
	return []cqrs.Registration{
		cqrs.For(h.createPool, access),
		cqrs.For(h.addQuestion, access),
		cqrs.For(h.removeQuestion, access),
		cqrs.For(h.storePool, access),
		cqrs.For(h.deletePool, access),
	}
}

func (h *handlers) load(ctx context.Context, id questionpool.ID) (*questionpool.Pool, error) {
	return h.repo.GetByID(ctx, id.String(), h.loadOpts...)
}

func (h *handlers) save(ctx context.Context, p *questionpool.Pool) error {
	return h.repo.Save(ctx, p, h.saveOpts...)
}

func (h *handlers) createPool(ctx context.Context, cmd CreatePool) error {
	p := h.repo.NewWithID(cmd.ID.String())
	if err := p.Create(cmd.ID, cmd.Data, callerID(ctx)); err != nil {
		return err
	}
	err := h.save(ctx, p)
	if errors.Is(err, es.ErrConcurrencyConflict) {
		return fmt.Errorf("%w: pool %s already exists: %w", es.ErrValidationFailed, cmd.ID, err)
	}
	return err
}

func (h *handlers) addQuestion(ctx context.Context, cmd AddQuestion) error {
	p, err := h.load(ctx, cmd.PoolID)
	if err != nil {
		return err
	}
	if err := p.AddQuestion(cmd.QuestionID); err != nil {
		return err
	}
	return h.save(ctx, p)
}

func (h *handlers) removeQuestion(ctx context.Context, cmd RemoveQuestion) error {
	p, err := h.load(ctx, cmd.PoolID)
	if err != nil {
		return err
	}
	if err := p.RemoveQuestion(cmd.QuestionID); err != nil {
		return err
	}
	return h.save(ctx, p)
}

func (h *handlers) storePool(ctx context.Context, cmd StorePool) error {
	if cmd.Pool == nil {
		return fmt.Errorf("%w: no pool to store", es.ErrValidationFailed)
	}
	return h.save(ctx, cmd.Pool)
}

func (h *handlers) deletePool(ctx context.Context, cmd DeletePool) error {
	p, err := h.load(ctx, cmd.PoolID)
	if err != nil {
		return err
	}
	if err := p.Delete(callerID(ctx)); err != nil {
		return err
	}
	return h.save(ctx, p)
}
