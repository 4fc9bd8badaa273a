package domain

import (
	"encoding/json"
	"fmt"

	"github.com/codewandler/qpool-go/core/es"
	"github.com/codewandler/qpool-go/core/es/assert"
)

const MaxCount = 24

type (
	Counter struct {
		es.BaseAggregate

		Count          int `json:"count"`
		NumIncrements  int `json:"num_increments"`
		NumResets      int `json:"num_resets"`
		NumTotalEvents int `json:"num_total_events"`
	}

	// Incremented is at schema version 2. Version 1 carried the step as
	// an unsigned byte in "inc".
	Incremented struct {
		By    int  `json:"by,omitempty"`
		Reset bool `json:"reset,omitempty"`
	}

	incrementedV1 struct {
		Inc   uint8 `json:"inc,omitempty"`
		Reset bool  `json:"reset,omitempty"`
	}
)

func (e *Incremented) EventType() string { return "counter.incremented" }
func (e *Incremented) EventVersion() int { return 2 }

func decodeIncrementedV1(data []byte) (any, error) {
	var v1 incrementedV1
	if err := json.Unmarshal(data, &v1); err != nil {
		return nil, err
	}
	return &Incremented{By: int(v1.Inc), Reset: v1.Reset}, nil
}

func (a *Counter) Snapshot() (data []byte, err error) { return json.Marshal(a) }
func (a *Counter) RestoreSnapshot(data []byte) error  { return json.Unmarshal(data, a) }
func (a *Counter) GetAggType() string                 { return "counter" }

func (a *Counter) Register(r es.Registrar) {
	es.RegisterEvents(r, es.Event[Incremented]())
	r.RegisterDecoder("counter.incremented", 1, decodeIncrementedV1)
}

func (a *Counter) Apply(event any) error {
	switch e := event.(type) {
	case *Incremented:
		a.NumTotalEvents++

		if e.By > 0 {
			a.Count += e.By
			a.NumIncrements++
		}

		if e.Reset {
			a.Count = 0
			a.NumResets++
		}

		return nil
	}
	return fmt.Errorf("unknown event: %T", event)
}

var _ es.Snapshottable = &Counter{}

// === Commands ===

func (a *Counter) Reset() error { return es.RaiseAndApply(a, &Incremented{Reset: true}) }
func (a *Counter) Inc() error   { return a.IncBy(1) }
func (a *Counter) IncBy(v int) error {
	return a.Checked(
		assert.All(
			assert.True(v > 0, "step is positive"),
			assert.True(a.Count+v <= MaxCount, "counter stays within limit"),
		),
		es.RaiseAndApplyD(a, &Incremented{By: v}),
	)
}

func NewCounter(id string) *Counter {
	a := &Counter{}
	a.SetID(id)
	return a
}
