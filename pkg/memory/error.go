package memory

import "errors"

var (
	// ErrValidation is returned when a write is rejected at the boundary
	// (empty content, unknown source type, malformed owner key, out-of-range
	// confidence).
	ErrValidation = errors.New("invalid memory write")

	// ErrInvariant is returned when stored data violates the record model
	// (unknown tier, unknown payload field, supersession cycle). The
	// offending record is quarantined, not trusted and not auto-repaired.
	ErrInvariant = errors.New("memory invariant violation")

	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("memory record not found")
)
