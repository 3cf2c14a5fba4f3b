// Package memory owns the memory record model and the record manager: the
// write path (embed, contradiction check, score, persist) and the retrieval
// path (semantic search, chain resolution, access tracking).
package memory

import (
	"fmt"
	"strings"
	"time"
)

// OwnerKey is the (user, agent) pair that scopes all memory isolation. No
// query crosses owner keys.
type OwnerKey struct {
	UserID  string `json:"user_id"`
	AgentID string `json:"agent_id"`
}

// NewOwnerKey validates and builds an owner key.
func NewOwnerKey(userID, agentID string) (OwnerKey, error) {
	if userID == "" || agentID == "" {
		return OwnerKey{}, fmt.Errorf("%w: user and agent IDs are required", ErrValidation)
	}
	if strings.Contains(userID, "|") || strings.Contains(agentID, "|") {
		return OwnerKey{}, fmt.Errorf("%w: IDs must not contain '|'", ErrValidation)
	}
	return OwnerKey{UserID: userID, AgentID: agentID}, nil
}

// String renders the canonical "user|agent" form used as the store scope.
func (o OwnerKey) String() string {
	return o.UserID + "|" + o.AgentID
}

// ParseOwnerKey parses the canonical "user|agent" form.
func ParseOwnerKey(s string) (OwnerKey, error) {
	user, agent, ok := strings.Cut(s, "|")
	if !ok {
		return OwnerKey{}, fmt.Errorf("%w: owner key %q is not user|agent", ErrValidation, s)
	}
	return NewOwnerKey(user, agent)
}

// Tier is the coarse retrieval/cost class of a record. Decay moves records
// hot → warm → cold; only the tier job (or a retrieval access, which resets
// to hot) changes it.
type Tier string

const (
	TierHot  Tier = "hot"
	TierWarm Tier = "warm"
	TierCold Tier = "cold"

	// TierQuarantined is a synthetic tier for records that violated a data
	// invariant (unknown tier/source, supersession cycle). Quarantined
	// records are excluded from every default retrieval and are never
	// auto-repaired.
	TierQuarantined Tier = "quarantined"
)

// Rank orders tiers for min-tier filtering. Higher is hotter; quarantined
// ranks below every retrievable tier.
func (t Tier) Rank() int {
	switch t {
	case TierHot:
		return 3
	case TierWarm:
		return 2
	case TierCold:
		return 1
	default:
		return 0
	}
}

// Below returns the next tier down under decay. Cold has no lower tier.
func (t Tier) Below() Tier {
	switch t {
	case TierHot:
		return TierWarm
	case TierWarm:
		return TierCold
	default:
		return TierCold
	}
}

// ParseTier validates a stored tier value.
func ParseTier(s string) (Tier, error) {
	switch Tier(s) {
	case TierHot, TierWarm, TierCold, TierQuarantined:
		return Tier(s), nil
	}
	return "", fmt.Errorf("%w: unknown tier %q", ErrInvariant, s)
}

// SourceType classifies where a memory came from and doubles as its trust
// weight input for significance scoring.
type SourceType string

const (
	SourceDirectStatement SourceType = "direct-statement"
	SourceInference       SourceType = "inference"
	SourceSummary         SourceType = "summary"
	SourceDreamSynthesis  SourceType = "dream-like-synthesis"
	SourceSecondhand      SourceType = "secondhand-report"
	SourceObservation     SourceType = "observation"
)

// TrustWeight returns the fixed trust factor for the source type.
// Direct statements outrank inferences, which outrank derived material.
func (s SourceType) TrustWeight() float64 {
	switch s {
	case SourceDirectStatement:
		return 1.0
	case SourceObservation:
		return 0.85
	case SourceSecondhand:
		return 0.6
	case SourceInference:
		return 0.5
	case SourceSummary:
		return 0.4
	case SourceDreamSynthesis:
		return 0.2
	default:
		return 0
	}
}

// ParseSourceType validates a source type at the write boundary.
func ParseSourceType(s string) (SourceType, error) {
	switch SourceType(s) {
	case SourceDirectStatement, SourceInference, SourceSummary,
		SourceDreamSynthesis, SourceSecondhand, SourceObservation:
		return SourceType(s), nil
	}
	return "", fmt.Errorf("%w: unknown source type %q", ErrValidation, s)
}

// MemoryRecord is the atomic unit of remembered information.
type MemoryRecord struct {
	// ID is assigned at creation and immutable.
	ID string `json:"id"`

	// Owner is immutable after creation.
	Owner OwnerKey `json:"owner"`

	// Content is the literal remembered text.
	Content string `json:"content"`

	Source SourceType `json:"source_type"`
	Tier   Tier       `json:"tier"`

	// Significance is recomputed periodically in [0,1]. Once it crosses the
	// lock threshold the record is Locked and exempt from decay demotion.
	Significance float64 `json:"significance_score"`
	Locked       bool    `json:"locked"`

	// Confidence is supplied at creation (extraction certainty).
	Confidence float64 `json:"confidence"`

	// EmotionalIntensity is the affect signal attached at write time.
	EmotionalIntensity float64 `json:"emotional_intensity"`

	AccessCount    int64     `json:"access_count"`
	CreatedAt      time.Time `json:"created_at"`
	LastAccessedAt time.Time `json:"last_accessed_at"`

	// SupersededBy points at the newer record that corrects this one. Once
	// set the record is out of default retrieval but never deleted.
	SupersededBy string `json:"superseded_by,omitempty"`

	// Version is the optimistic-concurrency counter in the similarity store.
	Version int64 `json:"-"`
}

// Superseded reports whether this record has been corrected.
func (r *MemoryRecord) Superseded() bool {
	return r.SupersededBy != ""
}
