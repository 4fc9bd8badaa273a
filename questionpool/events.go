package questionpool

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/google/uuid"

	"github.com/codewandler/qpool-go/core/es"
)

const AggregateType = "question_pool"

const (
	EventPoolCreated          = "question_pool.created"
	EventPoolDataSet          = "question_pool.data_set"
	EventQuestionAdded        = "question_pool.question_added"
	EventQuestionRemoved      = "question_pool.question_removed"
	EventConfigurationSet     = "question_pool.configuration_set"
	EventConfigurationRemoved = "question_pool.configuration_removed"
	EventPoolDeleted          = "question_pool.deleted"
)

type (
	PoolCreated struct {
		ID      ID     `json:"id"`
		Data    Data   `json:"data"`
		Creator string `json:"creator,omitempty"`
	}

	// PoolDataSet is at schema version 2. Version 1 bodies are the bare
	// Data document without the editing user.
	PoolDataSet struct {
		Data Data   `json:"data"`
		User string `json:"user,omitempty"`
	}

	// QuestionAdded persists the question id as a JSON string.
	QuestionAdded struct {
		QuestionID ID
	}

	QuestionRemoved struct {
		QuestionID ID
	}

	ConfigurationSet struct {
		ConfigFor string     `json:"config_for"`
		Value     TypedValue `json:"value"`
	}

	ConfigurationRemoved struct {
		ConfigFor string `json:"config_for"`
	}

	PoolDeleted struct {
		DeletedBy string `json:"deleted_by,omitempty"`
	}
)

func (*PoolCreated) EventType() string          { return EventPoolCreated }
func (*PoolDataSet) EventType() string          { return EventPoolDataSet }
func (*PoolDataSet) EventVersion() int          { return 2 }
func (*QuestionAdded) EventType() string        { return EventQuestionAdded }
func (*QuestionRemoved) EventType() string      { return EventQuestionRemoved }
func (*ConfigurationSet) EventType() string     { return EventConfigurationSet }
func (*ConfigurationRemoved) EventType() string { return EventConfigurationRemoved }
func (*PoolDeleted) EventType() string          { return EventPoolDeleted }

func (e *PoolCreated) Validate() error {
	if e.ID == uuid.Nil {
		return errors.New("pool id is nil")
	}
	return nil
}

func (e *QuestionAdded) Validate() error   { return validQuestionID(e.QuestionID) }
func (e *QuestionRemoved) Validate() error { return validQuestionID(e.QuestionID) }

func (e *QuestionAdded) MarshalBody() ([]byte, error)      { return marshalID(e.QuestionID) }
func (e *QuestionAdded) UnmarshalBody(data []byte) error   { return unmarshalID(data, &e.QuestionID) }
func (e *QuestionRemoved) MarshalBody() ([]byte, error)    { return marshalID(e.QuestionID) }
func (e *QuestionRemoved) UnmarshalBody(data []byte) error { return unmarshalID(data, &e.QuestionID) }

func (e *ConfigurationSet) Validate() error {
	if e.ConfigFor == "" {
		return errors.New("configuration tag is empty")
	}
	if e.Value.Type == "" {
		return errors.New("configuration type is empty")
	}
	return nil
}

func (e *ConfigurationRemoved) Validate() error {
	if e.ConfigFor == "" {
		return errors.New("configuration tag is empty")
	}
	return nil
}

func validQuestionID(id ID) error {
	if id == uuid.Nil {
		return errors.New("question id is nil")
	}
	return nil
}

func marshalID(id ID) ([]byte, error) { return json.Marshal(id.String()) }

// unmarshalID accepts the JSON string form and the bare id.
func unmarshalID(data []byte, id *ID) error {
	s := string(bytes.TrimSpace(data))
	if len(s) > 0 && s[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
	}
	parsed, err := ParseID(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func decodePoolDataSetV1(data []byte) (any, error) {
	var d Data
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, err
	}
	return &PoolDataSet{Data: d}, nil
}

// RegisterEvents registers all pool events, including decoders for older
// schema versions.
func RegisterEvents(r es.Registrar) {
	es.RegisterEvents(
		r,
		es.Event[PoolCreated](),
		es.Event[PoolDataSet](),
		es.Event[QuestionAdded](),
		es.Event[QuestionRemoved](),
		es.Event[ConfigurationSet](),
		es.Event[ConfigurationRemoved](),
		es.Event[PoolDeleted](),
	)
	r.RegisterDecoder(EventPoolDataSet, 1, decodePoolDataSetV1)
}
