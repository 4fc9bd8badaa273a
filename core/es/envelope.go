package es

import (
	"encoding/json"
	"fmt"
	"time"
)

// Envelope is the persisted form of one event.
type Envelope struct {
	ID string `json:"id"`
	// Seq is the store-wide position of the event. It never decreases in
	// store order; events written by one append may share it.
	Seq uint64 `json:"seq"`
	// Version is the position within the aggregate stream (1, 2, 3, ...).
	Version       Version `json:"version"`
	AggregateType string  `json:"aggregate"`
	AggregateID   string  `json:"aggregate_id"`
	// Type is the stable event type name used to pick a decoder.
	Type string `json:"type"`
	// SchemaVersion is the revision of the body layout for Type. Zero is
	// read as 1.
	SchemaVersion int             `json:"schema_version,omitempty"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Data          json.RawMessage `json:"data"`
}

// GetSchemaVersion returns the schema version with the zero value mapped to 1.
func (e Envelope) GetSchemaVersion() int {
	if e.SchemaVersion <= 0 {
		return 1
	}
	return e.SchemaVersion
}

func (e Envelope) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("envelope id is empty")
	}
	if e.OccurredAt.IsZero() {
		return fmt.Errorf("envelope occurred at is zero")
	}
	if e.AggregateID == "" {
		return fmt.Errorf("envelope aggregate id is empty")
	}
	if e.AggregateType == "" {
		return fmt.Errorf("envelope aggregate type is empty")
	}
	if e.Type == "" {
		return fmt.Errorf("envelope type is empty")
	}
	if e.Version == 0 {
		return fmt.Errorf("envelope version is zero")
	}
	return nil
}

// Decoder turns a persisted envelope back into a typed event.
type Decoder interface{ Decode(e Envelope) (any, error) }
