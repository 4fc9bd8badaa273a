package cqrs

import (
	"context"
	"fmt"

	"github.com/codewandler/qpool-go/internal/reflector"
)

type (
	// Command is an immutable request to change state. It is identified by
	// CommandType() when implemented, otherwise by its Go type name.
	Command any

	commandTyper interface {
		CommandType() string
	}

	// Handler executes one kind of command.
	Handler interface {
		Handle(ctx context.Context, cmd Command) error
	}

	HandlerFunc func(ctx context.Context, cmd Command) error

	// Registration binds a command type to its handler and access policy.
	Registration struct {
		CommandType string
		Handler     Handler
		Access      AccessPolicy
	}
)

func (f HandlerFunc) Handle(ctx context.Context, cmd Command) error { return f(ctx, cmd) }

// CommandTypeOf returns the routing name of cmd. A command and a pointer to
// it share the same name.
func CommandTypeOf(cmd Command) string {
	if ct, ok := cmd.(commandTyper); ok {
		return ct.CommandType()
	}
	return reflector.TypeInfoOf(cmd).Name
}

func commandTypeFor[C any]() string {
	var z C
	if ct, ok := any(z).(commandTyper); ok {
		return ct.CommandType()
	}
	if ct, ok := any(new(C)).(commandTyper); ok {
		return ct.CommandType()
	}
	return reflector.TypeInfoFor[C]().Name
}

// For registers a typed handler for commands of type C. The bus accepts both
// C and *C for it.
func For[C any](handle func(ctx context.Context, cmd C) error, access AccessPolicy) Registration {
	return Registration{
		CommandType: commandTypeFor[C](),
		Access:      access,
		Handler: HandlerFunc(func(ctx context.Context, cmd Command) error {
			switch c := cmd.(type) {
			case C:
				return handle(ctx, c)
			case *C:
				if c == nil {
					return fmt.Errorf("nil command %T", cmd)
				}
				return handle(ctx, *c)
			default:
				return fmt.Errorf("invalid command type %T, expected %T", cmd, *new(C))
			}
		}),
	}
}
