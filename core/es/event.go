package es

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/codewandler/qpool-go/internal/reflector"
)

type (
	// DecodeFunc decodes the body of a specific (type, schema version) pair
	// into the current in-memory event.
	DecodeFunc func(data []byte) (any, error)

	// Registrar is what aggregates register their events with.
	Registrar interface {
		// Register sets the constructor for the current schema version of eventType.
		Register(eventType string, ctor func() any)
		// RegisterDecoder adds an upcasting decoder for an older schema version.
		RegisterDecoder(eventType string, schemaVersion int, dec DecodeFunc)
	}

	// BodyMarshaler lets an event own the encoding of its persisted body.
	BodyMarshaler interface {
		MarshalBody() ([]byte, error)
	}

	// BodyUnmarshaler is the decoding counterpart of BodyMarshaler.
	BodyUnmarshaler interface {
		UnmarshalBody(data []byte) error
	}
)

type registeredEvent struct {
	ctor     func() any
	current  int
	decoders map[int]DecodeFunc
}

// EventRegistry maps (event type, schema version) to decoders.
type EventRegistry struct {
	mu    sync.RWMutex
	types map[string]*registeredEvent
}

func NewRegistry() *EventRegistry {
	return &EventRegistry{types: map[string]*registeredEvent{}}
}

func (r *EventRegistry) entry(eventType string) *registeredEvent {
	e, ok := r.types[eventType]
	if !ok {
		e = &registeredEvent{decoders: map[int]DecodeFunc{}}
		r.types[eventType] = e
	}
	return e
}

func (r *EventRegistry) Register(eventType string, ctor func() any) {
	current := EventVersionOf(ctor())

	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.entry(eventType)
	e.ctor = ctor
	e.current = current
}

func (r *EventRegistry) RegisterDecoder(eventType string, schemaVersion int, dec DecodeFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entry(eventType).decoders[schemaVersion] = dec
}

// Types returns the registered event type names in sorted order.
func (r *EventRegistry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.types))
	for t, e := range r.types {
		if e.ctor != nil {
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}

// Decode dispatches on (Type, SchemaVersion). The current schema version is
// decoded with the registered constructor, older versions need a decoder
// added with RegisterDecoder. Anything else fails with
// ErrUnsupportedEventVersion.
func (r *EventRegistry) Decode(env Envelope) (any, error) {
	r.mu.RLock()
	e, ok := r.types[env.Type]
	var (
		ctor    func() any
		current int
		dec     DecodeFunc
	)
	if ok {
		ctor, current = e.ctor, e.current
		dec = e.decoders[env.GetSchemaVersion()]
	}
	r.mu.RUnlock()

	if !ok || ctor == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEventType, env.Type)
	}

	version := env.GetSchemaVersion()
	switch {
	case version == current:
		ev := ctor()
		if err := UnmarshalEventBody(env.Data, ev); err != nil {
			return nil, fmt.Errorf("decode %s v%d: %w", env.Type, version, err)
		}
		return ev, nil
	case dec != nil:
		ev, err := dec(env.Data)
		if err != nil {
			return nil, fmt.Errorf("decode %s v%d: %w", env.Type, version, err)
		}
		return ev, nil
	default:
		return nil, fmt.Errorf(
			"%w: %s v%d (current v%d)",
			ErrUnsupportedEventVersion, env.Type, version, current,
		)
	}
}

var (
	_ Registrar = (*EventRegistry)(nil)
	_ Decoder   = (*EventRegistry)(nil)
)

// Event returns a constructor for a fresh *T.
func Event[T any]() func() any { return func() any { return new(T) } }

// RegisterEvents registers constructors under the type name of the event
// they produce (see EventTypeOf).
func RegisterEvents(r Registrar, ctors ...func() any) {
	for _, ctor := range ctors {
		r.Register(EventTypeOf(ctor()), ctor)
	}
}

// EventTypeOf returns EventType() when implemented, otherwise the Go type name.
func EventTypeOf(ev any) string {
	if t, ok := ev.(interface{ EventType() string }); ok {
		return t.EventType()
	}
	return reflector.TypeInfoOf(ev).Name
}

// EventVersionOf returns EventVersion() when implemented, otherwise 1.
func EventVersionOf(ev any) int {
	if v, ok := ev.(interface{ EventVersion() int }); ok && v.EventVersion() > 0 {
		return v.EventVersion()
	}
	return 1
}

// MarshalEventBody encodes ev with MarshalBody when implemented, otherwise JSON.
func MarshalEventBody(ev any) ([]byte, error) {
	if m, ok := ev.(BodyMarshaler); ok {
		return m.MarshalBody()
	}
	return json.Marshal(ev)
}

// UnmarshalEventBody decodes data into ev, the inverse of MarshalEventBody.
func UnmarshalEventBody(data []byte, ev any) error {
	if u, ok := ev.(BodyUnmarshaler); ok {
		return u.UnmarshalBody(data)
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, ev)
}
