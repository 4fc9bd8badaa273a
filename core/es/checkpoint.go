package es

import "sync/atomic"

// CpStore persists the last store position a projection has processed.
// Zero means nothing was processed yet.
type CpStore interface {
	Get() (lastSeq uint64, err error)
	Set(lastSeq uint64) error
}

// InMemCpStore keeps the position for the lifetime of the process, which is
// what a read model rebuilt on every start needs.
type InMemCpStore struct {
	lastSeq atomic.Uint64
}

func NewInMemCpStore() *InMemCpStore { return &InMemCpStore{} }

func (s *InMemCpStore) Get() (uint64, error) { return s.lastSeq.Load(), nil }

func (s *InMemCpStore) Set(lastSeq uint64) error {
	s.lastSeq.Store(lastSeq)
	return nil
}

var _ CpStore = (*InMemCpStore)(nil)
