package idhash

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"
)

// NewRunID returns a random run identifier: the base58 encoding of a v4 UUID.
func NewRunID() string {
	id := uuid.New()
	return base58.Encode(id[:])
}

// ParseRunID decodes a run identifier back to its UUID.
func ParseRunID(runID string) (uuid.UUID, error) {
	raw, err := base58.Decode(runID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("decode run id: %w", err)
	}
	id, err := uuid.FromBytes(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("run id is not a uuid: %w", err)
	}
	return id, nil
}
