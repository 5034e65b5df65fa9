package app

import "github.com/google/uuid"

// IDGenerator produces a new opaque record identifier.
// Isolated here so the ID strategy can evolve independently.
type IDGenerator func() string

// NewID returns a random (version 4) UUID string.
func NewID() string {
	return uuid.NewString()
}

func orDefault(ids IDGenerator) IDGenerator {
	if ids == nil {
		return NewID
	}
	return ids
}
