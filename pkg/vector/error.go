package vector

import "errors"

var (
	// ErrNotFound is returned when a point is not found in the store.
	ErrNotFound = errors.New("point not found")

	// ErrEmbedding is returned when embedding generation fails.
	ErrEmbedding = errors.New("embedding failed")

	// ErrConnection is returned when the similarity store connection fails.
	ErrConnection = errors.New("similarity store connection failed")

	// ErrVersionMismatch is returned by SetPayload when the stored version
	// no longer matches the caller's expectation. Callers skip and retry on
	// their next cycle rather than overwriting fresher state.
	ErrVersionMismatch = errors.New("point version mismatch")
)
