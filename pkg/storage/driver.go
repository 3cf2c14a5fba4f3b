// Package storage defines the durable relational store for derived
// conversation-window summaries.
package storage

import (
	"context"
	"time"
)

// WindowSummary is an append-only artifact produced by the enrichment worker:
// one compressed summary per (owner, window). The triple
// (OwnerKey, WindowStart, WindowEnd) is unique; re-runs are no-ops.
type WindowSummary struct {
	OwnerKey         string    `json:"owner_key"`
	WindowStart      time.Time `json:"window_start"`
	WindowEnd        time.Time `json:"window_end"`
	SummaryText      string    `json:"summary_text"`
	KeyTopics        []string  `json:"key_topics"`
	DominantTone     string    `json:"dominant_tone"`
	MessageCount     int       `json:"message_count"`
	CompressionRatio float64   `json:"compression_ratio"`
	ConfidenceScore  float64   `json:"confidence_score"`
	CreatedAt        time.Time `json:"created_at"`
}

// SummaryStore persists window summaries with at-most-one semantics per
// window. Implementations back the uniqueness constraint with the database,
// not application locks, so concurrent worker replicas stay safe.
type SummaryStore interface {
	// Insert writes a summary row. Returns false without error when a row
	// for the same (owner, window) already exists — the idempotent no-op
	// path for re-runs and concurrent workers.
	Insert(ctx context.Context, summary *WindowSummary) (bool, error)

	// LatestWindowEnd returns the end of the newest summarized window for
	// the owner, or the zero time when the owner has no summaries yet.
	LatestWindowEnd(ctx context.Context, ownerKey string) (time.Time, error)

	// List returns the owner's summaries, newest window first. A limit of
	// zero or less means no limit.
	List(ctx context.Context, ownerKey string, limit int) ([]*WindowSummary, error)

	// Close releases the underlying database resources.
	Close() error
}
