package questionpool

import (
	"encoding/json"
	"fmt"
	"maps"

	"github.com/google/uuid"

	"github.com/codewandler/qpool-go/core/ds"
	"github.com/codewandler/qpool-go/core/es"
	"github.com/codewandler/qpool-go/core/es/assert"
)

// Pool is a named, ordered collection of question ids plus configuration
// values keyed by tag. All state changes go through Apply.
type Pool struct {
	es.BaseAggregate

	poolID         ID
	data           Data
	questions      ds.Set[ID]
	configurations map[string]TypedValue
	creator        string
	editor         string
	created        bool
	deleted        bool
}

func (p *Pool) GetAggType() string      { return AggregateType }
func (p *Pool) Register(r es.Registrar) { RegisterEvents(r) }

func (p *Pool) Apply(event any) error {
	switch e := event.(type) {
	case *PoolCreated:
		p.poolID = e.ID
		p.data = e.Data.clone()
		p.creator = e.Creator
		p.created = true
	case *PoolDataSet:
		p.data = e.Data.clone()
		p.editor = e.User
	case *QuestionAdded:
		p.questions.Add(e.QuestionID)
	case *QuestionRemoved:
		p.questions.Remove(e.QuestionID)
	case *ConfigurationSet:
		if p.configurations == nil {
			p.configurations = map[string]TypedValue{}
		}
		p.configurations[e.ConfigFor] = e.Value.clone()
	case *ConfigurationRemoved:
		delete(p.configurations, e.ConfigFor)
	case *PoolDeleted:
		p.deleted = true
	default:
		return fmt.Errorf("unknown event: %T", event)
	}
	return nil
}

// === Commands ===

func (p *Pool) isActive() assert.Cond {
	return assert.That("pool is active", func() bool { return p.created && !p.deleted })
}

// Create starts the stream with PoolCreated. The aggregate id is taken from id.
func (p *Pool) Create(id ID, data Data, creator string) error {
	return p.Checked(
		assert.All(
			assert.False(p.created, "pool does not exist yet"),
			assert.True(id != uuid.Nil, "pool id is set"),
			assert.True(p.GetID() == "" || p.GetID() == id.String(), "pool id matches aggregate id"),
		),
		func() error {
			p.SetID(id.String())
			return es.RaiseAndApply(p, &PoolCreated{ID: id, Data: data.clone(), Creator: creator})
		},
	)
}

// SetData replaces name and description and records who changed them.
func (p *Pool) SetData(data Data, user string) error {
	return p.Checked(
		p.isActive(),
		es.RaiseAndApplyD(p, &PoolDataSet{Data: data.clone(), User: user}),
	)
}

func (p *Pool) AddQuestion(questionID ID) error {
	return p.Checked(
		assert.All(
			p.isActive(),
			assert.False(p.questions.Contains(questionID), "question is not in pool"),
		),
		es.RaiseAndApplyD(p, &QuestionAdded{QuestionID: questionID}),
	)
}

func (p *Pool) RemoveQuestion(questionID ID) error {
	return p.Checked(
		assert.All(
			p.isActive(),
			assert.True(p.questions.Contains(questionID), "question is in pool"),
		),
		es.RaiseAndApplyD(p, &QuestionRemoved{QuestionID: questionID}),
	)
}

func (p *Pool) SetConfiguration(configFor string, value TypedValue) error {
	return p.Checked(
		p.isActive(),
		es.RaiseAndApplyD(p, &ConfigurationSet{ConfigFor: configFor, Value: value.clone()}),
	)
}

func (p *Pool) RemoveConfiguration(configFor string) error {
	_, exists := p.configurations[configFor]
	return p.Checked(
		assert.All(
			p.isActive(),
			assert.True(exists, "configuration exists"),
		),
		es.RaiseAndApplyD(p, &ConfigurationRemoved{ConfigFor: configFor}),
	)
}

// Delete appends the tombstone. The history stays readable.
func (p *Pool) Delete(user string) error {
	return p.Checked(
		p.isActive(),
		es.RaiseAndApplyD(p, &PoolDeleted{DeletedBy: user}),
	)
}

// === Read ===

func (p *Pool) ID() ID             { return p.poolID }
func (p *Pool) Data() Data         { return p.data.clone() }
func (p *Pool) Creator() string    { return p.creator }
func (p *Pool) Editor() string     { return p.editor }
func (p *Pool) IsDeleted() bool    { return p.deleted }
func (p *Pool) QuestionCount() int { return p.questions.Len() }

// Questions returns the question ids in insertion order.
func (p *Pool) Questions() []ID { return p.questions.Values() }

func (p *Pool) HasQuestion(questionID ID) bool { return p.questions.Contains(questionID) }

func (p *Pool) Configuration(configFor string) (TypedValue, bool) {
	v, ok := p.configurations[configFor]
	if !ok {
		return TypedValue{}, false
	}
	return v.clone(), true
}

func (p *Pool) Configurations() map[string]TypedValue {
	out := make(map[string]TypedValue, len(p.configurations))
	for k, v := range p.configurations {
		out[k] = v.clone()
	}
	return out
}

// === Snapshot ===

type poolState struct {
	ID             ID                    `json:"id"`
	Data           Data                  `json:"data"`
	Questions      []ID                  `json:"questions"`
	Configurations map[string]TypedValue `json:"configurations,omitempty"`
	Creator        string                `json:"creator,omitempty"`
	Editor         string                `json:"editor,omitempty"`
	Created        bool                  `json:"created"`
	Deleted        bool                  `json:"deleted,omitempty"`
}

func (p *Pool) SnapshotSchemaVersion() int { return 1 }

func (p *Pool) Snapshot() ([]byte, error) {
	return json.Marshal(poolState{
		ID:             p.poolID,
		Data:           p.data,
		Questions:      p.questions.Values(),
		Configurations: p.configurations,
		Creator:        p.creator,
		Editor:         p.editor,
		Created:        p.created,
		Deleted:        p.deleted,
	})
}

func (p *Pool) RestoreSnapshot(data []byte) error {
	var s poolState
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	p.poolID = s.ID
	p.data = s.Data
	p.questions = *ds.NewSet(s.Questions...)
	p.configurations = maps.Clone(s.Configurations)
	p.creator = s.Creator
	p.editor = s.Editor
	p.created = s.Created
	p.deleted = s.Deleted
	return nil
}

var (
	_ es.Aggregate               = (*Pool)(nil)
	_ es.Snapshottable           = (*Pool)(nil)
	_ es.SnapshotSchemaVersioner = (*Pool)(nil)
)
