package gen

import (
	"github.com/google/uuid"
)

// IDGenerator produces correlation ids for transcription jobs.
type IDGenerator func() uuid.UUID

func UUID() IDGenerator {
	return func() uuid.UUID {
		return uuid.New()
	}
}

// Static always yields id. Used by tests that assert on log or response ids.
func Static(id uuid.UUID) IDGenerator {
	return func() uuid.UUID {
		return id
	}
}

func (g IDGenerator) Next() string {
	if g == nil {
		return uuid.Nil.String()
	}

	return g().String()
}
