package eventstream

import (
	"time"

	"github.com/google/uuid"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeMemoryWritten is emitted after a memory record is persisted.
	EventTypeMemoryWritten = "engram.memory.written"

	// EventTypeMemorySuperseded is emitted when a contradiction marks an
	// older record as corrected.
	EventTypeMemorySuperseded = "engram.memory.superseded"

	// EventTypeTierChanged is emitted when the tier job demotes a record or
	// a retrieval access promotes one.
	EventTypeTierChanged = "engram.memory.tier_changed"

	// EventTypeWindowSummarized is emitted after the enrichment worker
	// writes a new window summary row.
	EventTypeWindowSummarized = "engram.memory.window_summarized"
)

// Event is a transport-neutral payload describing a memory lifecycle change.
// Consumers key on OwnerKey so per-owner ordering survives partitioning.
type Event struct {
	SchemaVersion int       `json:"schema_version"`
	EventType     string    `json:"event_type"`
	EventID       string    `json:"event_id"`
	EmittedAt     time.Time `json:"emitted_at"`
	OwnerKey      string    `json:"owner_key"`

	// RecordID identifies the affected memory record, when applicable.
	RecordID string `json:"record_id,omitempty"`

	// SupersededID is the corrected record for superseded events.
	SupersededID string `json:"superseded_id,omitempty"`

	// FromTier/ToTier describe tier transitions.
	FromTier string `json:"from_tier,omitempty"`
	ToTier   string `json:"to_tier,omitempty"`

	// WindowStart/WindowEnd describe the summarized window.
	WindowStart *time.Time `json:"window_start,omitempty"`
	WindowEnd   *time.Time `json:"window_end,omitempty"`
}

// NewEvent creates a v1 event with a fresh ID and timestamp.
func NewEvent(eventType, ownerKey string) *Event {
	return &Event{
		SchemaVersion: SchemaVersionV1,
		EventType:     eventType,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		OwnerKey:      ownerKey,
	}
}
