package cqrs

import (
	"context"
	"errors"
)

var (
	ErrAccessDenied = errors.New("access denied")
)

// Caller identifies who issues a command.
type Caller struct {
	ID string
}

type callerKey struct{}

// WithCaller returns a context carrying c.
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

// CallerFrom returns the caller stored in ctx.
func CallerFrom(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerKey{}).(Caller)
	return c, ok && c.ID != ""
}

// Decision is the outcome of an access check.
type Decision struct {
	Allowed bool
	Reason  string
}

func Allow() Decision             { return Decision{Allowed: true} }
func Deny(reason string) Decision { return Decision{Reason: reason} }

// AccessPolicy decides whether a command may be executed.
type AccessPolicy interface {
	Authorize(ctx context.Context, cmd Command) Decision
}

type PolicyFunc func(ctx context.Context, cmd Command) Decision

func (f PolicyFunc) Authorize(ctx context.Context, cmd Command) Decision { return f(ctx, cmd) }

// OpenAccess allows every command.
func OpenAccess() AccessPolicy {
	return PolicyFunc(func(context.Context, Command) Decision { return Allow() })
}

// DenyAll rejects every command.
func DenyAll() AccessPolicy {
	return PolicyFunc(func(context.Context, Command) Decision { return Deny("denied by policy") })
}

// RequireCaller allows a command only when the context carries a caller.
func RequireCaller() AccessPolicy {
	return PolicyFunc(func(ctx context.Context, _ Command) Decision {
		if _, ok := CallerFrom(ctx); !ok {
			return Deny("no caller")
		}
		return Allow()
	})
}
