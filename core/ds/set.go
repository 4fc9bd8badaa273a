// Package ds provides small generic data structures whose iteration order is
// deterministic, so aggregate state rebuilt from events compares equal.
package ds

import (
	"encoding/json"
	"fmt"
	"slices"
)

// Set is an insertion-ordered set. The zero value is an empty set ready to use.
type Set[T comparable] struct {
	items map[T]struct{}
	order []T
}

// NewSet creates a set holding items in the given order, dropping duplicates.
func NewSet[T comparable](items ...T) *Set[T] {
	s := &Set[T]{}
	for _, item := range items {
		s.Add(item)
	}
	return s
}

func (s *Set[T]) String() string { return fmt.Sprintf("%v", s.order) }

// Add appends v and reports whether it was not present before.
func (s *Set[T]) Add(v T) bool {
	if s.Contains(v) {
		return false
	}
	if s.items == nil {
		s.items = map[T]struct{}{}
	}
	s.items[v] = struct{}{}
	s.order = append(s.order, v)
	return true
}

// Remove deletes v and reports whether it was present. Remaining elements
// keep their relative order.
func (s *Set[T]) Remove(v T) bool {
	if !s.Contains(v) {
		return false
	}
	delete(s.items, v)
	s.order = slices.DeleteFunc(s.order, func(x T) bool { return x == v })
	return true
}

func (s *Set[T]) Contains(v T) bool {
	_, ok := s.items[v]
	return ok
}

func (s *Set[T]) Len() int { return len(s.order) }

// Values returns a copy of the elements in insertion order.
func (s *Set[T]) Values() []T {
	out := make([]T, len(s.order))
	copy(out, s.order)
	return out
}

func (s *Set[T]) Clear() {
	s.items = nil
	s.order = nil
}

// MarshalJSON encodes the set as an ordered JSON array.
func (s Set[T]) MarshalJSON() ([]byte, error) {
	if s.order == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.order)
}

// UnmarshalJSON replaces the content with the elements of a JSON array.
func (s *Set[T]) UnmarshalJSON(data []byte) error {
	var values []T
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	s.Clear()
	for _, v := range values {
		s.Add(v)
	}
	return nil
}
