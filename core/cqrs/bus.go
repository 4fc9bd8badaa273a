package cqrs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

var (
	ErrUnregisteredCommand          = errors.New("unregistered command")
	ErrDuplicateCommandRegistration = errors.New("duplicate command registration")
)

type (
	busOpts struct {
		metrics BusMetrics
	}

	BusOption func(*busOpts)
)

// WithBusMetrics sets the metrics implementation.
func WithBusMetrics(m BusMetrics) BusOption {
	return func(o *busOpts) { o.metrics = m }
}

// Bus routes a command to the single handler registered for its type after
// the registration's access policy allowed it. Handling is synchronous.
type Bus struct {
	mu      sync.RWMutex
	log     *slog.Logger
	regs    map[string]Registration
	metrics BusMetrics
}

func NewBus(log *slog.Logger, regs []Registration, opts ...BusOption) (*Bus, error) {
	if log == nil {
		log = slog.Default()
	}
	options := busOpts{metrics: NopBusMetrics()}
	for _, opt := range opts {
		opt(&options)
	}

	b := &Bus{
		log:     log.With(slog.String("component", "command_bus")),
		regs:    make(map[string]Registration, len(regs)),
		metrics: options.metrics,
	}
	for _, reg := range regs {
		if err := b.Register(reg); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Register adds reg. A command type can only be registered once.
func (b *Bus) Register(reg Registration) error {
	if reg.CommandType == "" {
		return errors.New("command type is empty")
	}
	if reg.Handler == nil {
		return fmt.Errorf("no handler for %s", reg.CommandType)
	}
	if reg.Access == nil {
		return fmt.Errorf("no access policy for %s", reg.CommandType)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.regs[reg.CommandType]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateCommandRegistration, reg.CommandType)
	}
	b.regs[reg.CommandType] = reg
	b.log.Debug("registered", slog.String("command", reg.CommandType))
	return nil
}

// Registered returns the registered command types in sorted order.
func (b *Bus) Registered() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, 0, len(b.regs))
	for t := range b.regs {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Handle looks up the registration for cmd, checks access and runs the
// handler. It returns ErrUnregisteredCommand, ErrAccessDenied or the
// handler's error.
func (b *Bus) Handle(ctx context.Context, cmd Command) error {
	if cmd == nil {
		return errors.New("command is nil")
	}

	cmdType := CommandTypeOf(cmd)
	log := b.log.With(slog.String("command", cmdType))
	if caller, ok := CallerFrom(ctx); ok {
		log = log.With(slog.String("caller", caller.ID))
	}
	defer b.metrics.CommandDuration(cmdType).ObserveDuration()

	b.mu.RLock()
	reg, ok := b.regs[cmdType]
	b.mu.RUnlock()
	if !ok {
		log.Debug("unregistered")
		b.metrics.CommandHandled(cmdType, OutcomeUnregistered)
		return fmt.Errorf("%w: %s", ErrUnregisteredCommand, cmdType)
	}

	if d := reg.Access.Authorize(ctx, cmd); !d.Allowed {
		log.Debug("denied", slog.String("reason", d.Reason))
		b.metrics.CommandHandled(cmdType, OutcomeDenied)
		if d.Reason == "" {
			return fmt.Errorf("%w: %s", ErrAccessDenied, cmdType)
		}
		return fmt.Errorf("%w: %s: %s", ErrAccessDenied, cmdType, d.Reason)
	}

	if err := reg.Handler.Handle(ctx, cmd); err != nil {
		log.Debug("failed", slog.Any("error", err))
		b.metrics.CommandHandled(cmdType, OutcomeFailed)
		return err
	}

	log.Debug("handled")
	b.metrics.CommandHandled(cmdType, OutcomeOK)
	return nil
}
