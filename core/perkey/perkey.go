// Package perkey serializes work per key while work for different keys runs
// concurrently.
//
// The question pool service uses it to run the writes of one pool one after
// the other, so that an in-process load, mutate and save cycle does not race
// with another one on the same stream.
package perkey

import (
	"context"
	"sync"
)

// Locker hands out one exclusive slot per key. Slots are created on first
// use and dropped once nobody holds or waits for them.
type Locker[K comparable] struct {
	mu    sync.Mutex
	slots map[K]*slot
}

type slot struct {
	sem  chan struct{}
	refs int
}

func New[K comparable]() *Locker[K] {
	return &Locker[K]{slots: make(map[K]*slot)}
}

// Do runs fn while holding the slot for key and returns fn's error. Callers
// waiting for the same key are admitted one at a time. If ctx ends while
// waiting, fn is not run and the context error is returned.
func (l *Locker[K]) Do(ctx context.Context, key K, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s := l.acquire(key)
	defer l.release(key, s)

	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-s.sem }()

	return fn()
}

func (l *Locker[K]) acquire(key K) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{sem: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	return s
}

func (l *Locker[K]) release(key K, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}
