package es

import (
	"errors"
	"fmt"

	"github.com/codewandler/qpool-go/core/es/assert"
)

var (
	ErrAggregateNotFound       = errors.New("aggregate not found")
	ErrConcurrencyConflict     = errors.New("concurrency conflict")
	ErrUnknownEventType        = errors.New("unknown event type")
	ErrUnsupportedEventVersion = errors.New("unsupported event version")
	ErrValidationFailed        = errors.New("validation failed")
)

// Invalid returns an error wrapping ErrValidationFailed.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidationFailed, fmt.Sprintf(format, args...))
}

// Applier applies one event to in-memory state.
type Applier interface {
	Apply(event any) error
}

// Aggregate is an event-sourced domain object. State changes only through
// Apply, both for replayed events and for events raised by mutators.
//
// The lifecycle is:
//  1. create a fresh instance or load one through a Repository
//  2. call mutators, which use RaiseAndApply to stage events
//  3. Save through the Repository, which appends the staged events and
//     calls ClearUncommitted
type Aggregate interface {
	Applier

	// GetAggType names the stream family, e.g. "question_pool".
	GetAggType() string
	GetID() string
	SetID(string)

	// GetVersion is the number of persisted events applied so far.
	GetVersion() Version
	setVersion(Version)

	// GetSeq is the store position of the last applied event.
	GetSeq() uint64
	setSeq(uint64)

	Register(r Registrar)
	Raise(event any)

	// Uncommitted returns a copy of the staged events.
	Uncommitted() []any
	ClearUncommitted()
}

// BaseAggregate is embedded by aggregates to track identity, version and the
// pending event buffer.
type BaseAggregate struct {
	id          string
	version     Version
	seq         uint64
	uncommitted []any
}

func (b *BaseAggregate) GetID() string        { return b.id }
func (b *BaseAggregate) SetID(id string)      { b.id = id }
func (b *BaseAggregate) GetVersion() Version  { return b.version }
func (b *BaseAggregate) setVersion(v Version) { b.version = v }
func (b *BaseAggregate) GetSeq() uint64       { return b.seq }
func (b *BaseAggregate) setSeq(s uint64)      { b.seq = s }

func (b *BaseAggregate) Raise(event any)   { b.uncommitted = append(b.uncommitted, event) }
func (b *BaseAggregate) ClearUncommitted() { b.uncommitted = nil }
func (b *BaseAggregate) IsDirty() bool     { return len(b.uncommitted) > 0 }
func (b *BaseAggregate) Uncommitted() []any {
	out := make([]any, len(b.uncommitted))
	copy(out, b.uncommitted)
	return out
}

// Checked runs thenFunc only if c holds. A failed condition is reported as
// ErrValidationFailed.
func (b *BaseAggregate) Checked(c assert.Cond, thenFunc func() error) error {
	if err := c.Check(); err != nil {
		return fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}
	return thenFunc()
}

// === Helpers ===

type raiseApplier interface {
	Raise(event any)
	Apply(event any) error
}

// RaiseAndApply validates all events first, then stages and applies them one
// by one so later events see the state left by earlier ones.
func RaiseAndApply(a raiseApplier, events ...any) error {
	for _, e := range events {
		if ev, ok := e.(interface{ Validate() error }); ok {
			if err := ev.Validate(); err != nil {
				return fmt.Errorf("%w: invalid event %T: %w", ErrValidationFailed, e, err)
			}
		}
	}

	for _, e := range events {
		if err := a.Apply(e); err != nil {
			return err
		}
		a.Raise(e)
	}
	return nil
}

// RaiseAndApplyD defers RaiseAndApply, for use with Checked.
func RaiseAndApplyD(a raiseApplier, events ...any) func() error {
	return func() error { return RaiseAndApply(a, events...) }
}
