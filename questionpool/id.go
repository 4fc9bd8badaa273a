package questionpool

import (
	"fmt"

	"github.com/google/uuid"
)

// ID identifies pools and the questions they hold.
type ID = uuid.UUID

// NewID returns a random (version 4) ID.
func NewID() ID { return uuid.New() }

// ParseID parses the canonical 36 character form.
func ParseID(s string) (ID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid id %q: %w", s, err)
	}
	return id, nil
}
