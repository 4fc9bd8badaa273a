package es

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrStoreNoEvents = errors.New("no events to store")
)

type (
	// StoreLoadOptions is the resolved form of the StoreLoadOption list.
	StoreLoadOptions struct {
		StartVersion Version
	}

	StoreLoadOption interface {
		applyToStoreLoadOptions(*StoreLoadOptions)
	}

	startVersionOption valueOption[Version]
)

func (o startVersionOption) applyToStoreLoadOptions(opts *StoreLoadOptions) {
	opts.StartVersion = o.v
}

// WithStartAtVersion skips events with a version below v.
func WithStartAtVersion(v Version) StoreLoadOption { return startVersionOption{v: v} }

// NewStoreLoadOptions resolves opts. Store implementations call it in Load.
func NewStoreLoadOptions(opts ...StoreLoadOption) StoreLoadOptions {
	var o StoreLoadOptions
	for _, opt := range opts {
		opt.applyToStoreLoadOptions(&o)
	}
	return o
}

type (
	StoreAppendResult struct {
		// LastSeq is the store position of the last appended event.
		LastSeq uint64
	}

	// EventStore persists envelopes per aggregate stream.
	//
	// Append is a compare-and-append: it fails with ErrConcurrencyConflict
	// unless the stored version equals expectedVersion, and writes either all
	// events or none. Load returns events ordered by version and an empty
	// slice for an unknown stream.
	EventStore interface {
		Load(ctx context.Context, aggType string, aggID string, opts ...StoreLoadOption) ([]Envelope, error)
		Append(ctx context.Context, aggType string, aggID string, expectedVersion Version, events []Envelope) (*StoreAppendResult, error)
	}

	// Feed reads events across all streams in store order. It returns events
	// with Seq > afterSeq, at most limit of them unless that would split the
	// events of one append sharing a Seq.
	Feed interface {
		ReadAll(ctx context.Context, afterSeq uint64, limit int) ([]Envelope, error)
	}
)

// CheckAppend validates a batch before it is written: it must be non-empty,
// belong to the given stream and continue expectedVersion without gaps.
func CheckAppend(aggType, aggID string, expectedVersion Version, events []Envelope) error {
	if len(events) == 0 {
		return ErrStoreNoEvents
	}
	for i, e := range events {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("event %d: %w", i, err)
		}
		if e.AggregateType != aggType || e.AggregateID != aggID {
			return fmt.Errorf(
				"event %d: belongs to %s/%s, not %s/%s",
				i, e.AggregateType, e.AggregateID, aggType, aggID,
			)
		}
		if want := expectedVersion + Version(i+1); e.Version != want {
			return fmt.Errorf("event %d: expect version %d, got %d", i, want, e.Version)
		}
	}
	return nil
}

// ConflictError reports a failed compare-and-append.
func ConflictError(aggType, aggID string, expected, stored Version) error {
	return fmt.Errorf(
		"%w: %s/%s expected version %d, stored version %d",
		ErrConcurrencyConflict, aggType, aggID, expected, stored,
	)
}

// NewEnvelopes encodes events for the stream aggType/aggID, numbering them
// after expected.
func NewEnvelopes(
	aggType string,
	aggID string,
	expected Version,
	newID IDGenerator,
	now time.Time,
	events ...any,
) ([]Envelope, error) {
	out := make([]Envelope, 0, len(events))
	for i, ev := range events {
		data, err := MarshalEventBody(ev)
		if err != nil {
			return nil, fmt.Errorf("encode %T: %w", ev, err)
		}
		out = append(out, Envelope{
			ID:            newID(),
			Type:          EventTypeOf(ev),
			SchemaVersion: EventVersionOf(ev),
			AggregateType: aggType,
			AggregateID:   aggID,
			Version:       expected + Version(i+1),
			OccurredAt:    now,
			Data:          data,
		})
	}
	return out, nil
}
