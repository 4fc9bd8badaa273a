package questionpool

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrUnknownConfigurationType = errors.New("unknown configuration type")
)

// Configuration is a typed value object stored on a pool under a tag.
type Configuration interface {
	ConfigurationType() string
}

// TypedValue is the persisted form of a Configuration.
type TypedValue struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func (v TypedValue) Equal(o TypedValue) bool {
	return v.Type == o.Type && bytes.Equal(v.Data, o.Data)
}

func (v TypedValue) clone() TypedValue {
	return TypedValue{Type: v.Type, Data: bytes.Clone(v.Data)}
}

// ConfigurationTypes maps configuration type names to constructors. It is
// passed explicitly to whatever needs to decode configurations.
type ConfigurationTypes struct {
	mu    sync.RWMutex
	ctors map[string]func() Configuration
}

func NewConfigurationTypes() *ConfigurationTypes {
	return &ConfigurationTypes{ctors: map[string]func() Configuration{}}
}

// Register adds a constructor. ctor must return a pointer so that Decode can
// fill it.
func (c *ConfigurationTypes) Register(ctor func() Configuration) error {
	t := ctor().ConfigurationType()
	if t == "" {
		return errors.New("configuration type is empty")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.ctors[t]; exists {
		return fmt.Errorf("configuration type %s already registered", t)
	}
	c.ctors[t] = ctor
	return nil
}

// MustRegister is Register that panics on error.
func (c *ConfigurationTypes) MustRegister(ctors ...func() Configuration) *ConfigurationTypes {
	for _, ctor := range ctors {
		if err := c.Register(ctor); err != nil {
			panic(err)
		}
	}
	return c
}

func (c *ConfigurationTypes) Types() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.ctors))
	for t := range c.ctors {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Encode turns cfg into a TypedValue. Only registered types are accepted so
// that everything written can be read back.
func (c *ConfigurationTypes) Encode(cfg Configuration) (TypedValue, error) {
	if cfg == nil {
		return TypedValue{}, errors.New("configuration is nil")
	}
	t := cfg.ConfigurationType()

	c.mu.RLock()
	_, ok := c.ctors[t]
	c.mu.RUnlock()
	if !ok {
		return TypedValue{}, fmt.Errorf("%w: %s", ErrUnknownConfigurationType, t)
	}

	data, err := json.Marshal(cfg)
	if err != nil {
		return TypedValue{}, fmt.Errorf("encode configuration %s: %w", t, err)
	}
	return TypedValue{Type: t, Data: data}, nil
}

func (c *ConfigurationTypes) Decode(v TypedValue) (Configuration, error) {
	c.mu.RLock()
	ctor, ok := c.ctors[v.Type]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownConfigurationType, v.Type)
	}

	cfg := ctor()
	if err := json.Unmarshal(v.Data, cfg); err != nil {
		return nil, fmt.Errorf("decode configuration %s: %w", v.Type, err)
	}
	return cfg, nil
}
