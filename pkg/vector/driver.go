// Package vector provides interfaces and implementations for similarity
// storage with named per-perspective embeddings.
package vector

import (
	"context"
	"time"
)

// Well-known payload keys that drivers filter and update on. The memory layer
// owns the full payload schema; these keys are shared so every driver applies
// the same filter semantics.
const (
	PayloadOwner      = "owner_key"
	PayloadCreatedAt  = "created_at"
	PayloadTierRank   = "tier_rank"
	PayloadSuperseded = "superseded_by"
	PayloadVersion    = "version"
)

// Point is a stored record with one embedding per perspective and an opaque
// metadata payload.
type Point struct {
	// ID is the unique record identifier.
	ID string

	// Vectors maps a perspective name (e.g. "content", "topic") to its
	// embedding. Perspectives partition the similarity space.
	Vectors map[string][]float32

	// Payload holds record metadata. Drivers treat it as opaque except for
	// the well-known filter keys above.
	Payload map[string]any

	// Version is the optimistic-concurrency counter, mirrored into the
	// payload under PayloadVersion.
	Version int64
}

// SearchResult is a Point with its similarity score (higher = more similar).
type SearchResult struct {
	Point

	Score float32
}

// Filter scopes searches and listings. Owner is mandatory for searches; an
// unscoped cross-owner read is a correctness violation in the memory layer.
type Filter struct {
	// Owner restricts results to a single owner key. Empty means unscoped
	// (listings only).
	Owner string

	// MinTierRank excludes points whose tier rank is below the given value.
	// Negative means no tier filtering.
	MinTierRank int

	// IncludeSuperseded includes points whose superseded_by payload field is
	// set. Default retrieval excludes them.
	IncludeSuperseded bool

	// CreatedFrom/CreatedTo restrict to points created in the half-open
	// interval [CreatedFrom, CreatedTo). Zero values disable the bound.
	CreatedFrom time.Time
	CreatedTo   time.Time
}

// Driver handles storage and retrieval of multi-perspective embeddings.
type Driver interface {
	// Upsert stores points. A point with an existing ID is replaced.
	Upsert(ctx context.Context, points []Point) error

	// Search finds the topK points most similar to the embedding under the
	// given perspective, restricted by the filter.
	Search(ctx context.Context, perspective string, embedding []float32, f Filter, topK int) ([]SearchResult, error)

	// Get retrieves points by ID. Unknown IDs are omitted from the result.
	Get(ctx context.Context, ids []string) ([]Point, error)

	// List returns all points matching the filter. Used by batch jobs; the
	// hot path never calls it.
	List(ctx context.Context, f Filter) ([]Point, error)

	// Owners returns the distinct owner keys present in the store.
	Owners(ctx context.Context) ([]string, error)

	// SetPayload merges updates into a point's payload if the stored version
	// equals expectedVersion, bumping the version by one. Returns
	// ErrVersionMismatch when a concurrent write won. Drivers whose backend
	// lacks server-side compare-and-set guarantee this only within one
	// process; across replicas a racing update may be lost. Callers must
	// treat SetPayload as advisory for derived fields (tier, access counts)
	// and never depend on it for record content.
	SetPayload(ctx context.Context, id string, updates map[string]any, expectedVersion int64) error

	// Delete physically removes points. Reserved for the explicit prune
	// operation and right-to-erasure flows; routine forgetting demotes
	// tiers instead.
	Delete(ctx context.Context, ids []string) error

	// Close releases any resources held by the driver.
	Close() error
}
