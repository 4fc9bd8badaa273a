// Package es is a small event sourcing engine.
//
// # Aggregates
//
// An aggregate embeds [BaseAggregate], registers its events and changes state
// only in Apply. Mutators check their preconditions and stage events with
// [RaiseAndApply]:
//
//	type Pool struct {
//	    es.BaseAggregate
//	    Name string
//	}
//
//	func (p *Pool) Rename(name string) error {
//	    return es.RaiseAndApply(p, &Renamed{Name: name})
//	}
//
// # Events and schema versions
//
// Events are registered with an [EventRegistry] under their type name
// (EventType() or the Go type name). An event may declare EventVersion() int;
// older body layouts are read through decoders added with
// [EventRegistry.RegisterDecoder]. Unknown layouts fail with
// [ErrUnsupportedEventVersion]. Events can own their body encoding through
// [BodyMarshaler] and [BodyUnmarshaler], JSON is used otherwise.
//
// # Stores and repositories
//
// An [EventStore] appends envelopes with a compare-and-append on the stream
// version and returns [ErrConcurrencyConflict] when another writer got there
// first. [NewInMemoryStore] is meant for tests; adapters/sql and adapters/nats
// provide durable stores. A [TypedRepository] loads aggregates by replaying
// their stream and saves staged events:
//
//	repo := es.NewTypedRepository[*Pool](log, store, es.NewRegistry())
//	pool, err := repo.GetByID(ctx, id)
//	_ = pool.Rename("Math")
//	err = repo.Save(ctx, pool)
//
// Snapshots are opt-in per call with WithSnapshot(true) and need a
// [Snapshotter] configured on the repository.
//
// # Projections
//
// A [Projector] pulls events from a store implementing [Feed] and hands them
// to a [Projection], remembering its position in a [CpStore].
package es
