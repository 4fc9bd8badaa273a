package es

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// InMemoryStore keeps all streams in memory. Append is a mutex guarded
// compare-and-append; every event gets its own Seq.
type InMemoryStore struct {
	mu      sync.RWMutex
	log     *slog.Logger
	seq     uint64
	streams map[string][]Envelope
	all     []Envelope
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		log:     slog.Default().With(slog.String("store", "memory")),
		streams: map[string][]Envelope{},
	}
}

func (s *InMemoryStore) streamKey(aggType, aggID string) string {
	return fmt.Sprintf("%s-%s", aggType, aggID)
}

func (s *InMemoryStore) Load(
	_ context.Context,
	aggType,
	aggID string,
	opts ...StoreLoadOption,
) ([]Envelope, error) {
	loadOpts := NewStoreLoadOptions(opts...)

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Envelope, 0)
	for _, e := range s.streams[s.streamKey(aggType, aggID)] {
		if e.Version < loadOpts.StartVersion {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *InMemoryStore) Append(
	_ context.Context,
	aggType string,
	aggID string,
	expectVersion Version,
	events []Envelope,
) (*StoreAppendResult, error) {
	if err := CheckAppend(aggType, aggID, expectVersion, events); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		sk         = s.streamKey(aggType, aggID)
		curStream  = s.streams[sk]
		curVersion Version
	)
	if len(curStream) > 0 {
		curVersion = curStream[len(curStream)-1].Version
	}
	if curVersion != expectVersion {
		return nil, ConflictError(aggType, aggID, expectVersion, curVersion)
	}

	for _, e := range events {
		s.seq++
		e.Seq = s.seq
		curStream = append(curStream, e)
		s.all = append(s.all, e)
	}
	s.streams[sk] = curStream

	s.log.Debug(
		"append",
		slog.Group("agg", slog.String("type", aggType), slog.String("id", aggID)),
		slog.Uint64("last_seq", s.seq),
		slog.Int("num_events", len(events)),
	)

	return &StoreAppendResult{LastSeq: s.seq}, nil
}

func (s *InMemoryStore) ReadAll(_ context.Context, afterSeq uint64, limit int) ([]Envelope, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start := sort.Search(len(s.all), func(i int) bool { return s.all[i].Seq > afterSeq })
	end := len(s.all)
	if limit > 0 && start+limit < end {
		end = start + limit
	}
	out := make([]Envelope, end-start)
	copy(out, s.all[start:end])
	return out, nil
}

var (
	_ EventStore = (*InMemoryStore)(nil)
	_ Feed       = (*InMemoryStore)(nil)
)
