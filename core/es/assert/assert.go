// Package assert builds named preconditions that aggregate mutators check
// before raising events. A failed condition reports its name.
package assert

import (
	"errors"
	"fmt"
)

var ErrFailed = errors.New("assertion failed")

type CondFunc func() bool

type Cond interface {
	String() string
	Eval() bool
	Check() error
}

type cond struct {
	name  string
	eval  CondFunc
	check func() error
}

func (c *cond) String() string { return c.name }
func (c *cond) Eval() bool     { return c.eval() }
func (c *cond) Check() error   { return c.check() }

func newCond(name string, fn CondFunc) *cond {
	c := &cond{name: name, eval: fn}
	c.check = func() error {
		if !fn() {
			return fmt.Errorf("%w: %s", ErrFailed, name)
		}
		return nil
	}
	return c
}

// That evaluates fn lazily on every Eval/Check.
func That(name string, fn CondFunc) Cond { return newCond(name, fn) }

func True(v bool, name string) Cond  { return newCond(name, func() bool { return v }) }
func False(v bool, name string) Cond { return newCond(name, func() bool { return !v }) }

func Not(c Cond) Cond {
	return newCond("not "+c.String(), func() bool { return !c.Eval() })
}

// All holds when every condition holds. Check reports the first failing one.
func All(cs ...Cond) Cond {
	all := newCond("all", func() bool {
		for _, c := range cs {
			if !c.Eval() {
				return false
			}
		}
		return true
	})
	all.check = func() error {
		for _, c := range cs {
			if err := c.Check(); err != nil {
				return err
			}
		}
		return nil
	}
	return all
}
