package memory

import (
	"fmt"
	"math"
	"time"

	"github.com/reveriehq/engram/pkg/vector"
)

// Payload keys beyond the well-known vector driver keys.
const (
	payloadContent        = "content"
	payloadSource         = "source_type"
	payloadTier           = "tier"
	payloadLocked         = "locked"
	payloadSignificance   = "significance_score"
	payloadConfidence     = "confidence"
	payloadEmotion        = "emotional_intensity"
	payloadAccessCount    = "access_count"
	payloadLastAccessedAt = "last_accessed_at"
)

// knownPayloadKeys is the closed set of fields a record payload may carry.
// Decoding rejects anything outside it rather than silently dropping data.
var knownPayloadKeys = map[string]struct{}{
	"id":                     {},
	vector.PayloadOwner:      {},
	vector.PayloadCreatedAt:  {},
	vector.PayloadTierRank:   {},
	vector.PayloadSuperseded: {},
	vector.PayloadVersion:    {},
	payloadContent:           {},
	payloadSource:            {},
	payloadTier:              {},
	payloadLocked:            {},
	payloadSignificance:      {},
	payloadConfidence:        {},
	payloadEmotion:           {},
	payloadAccessCount:       {},
	payloadLastAccessedAt:    {},
}

// EncodeRecord renders a record as a vector store point payload. Vectors are
// attached by the caller.
func EncodeRecord(r *MemoryRecord) vector.Point {
	return vector.Point{
		ID:      r.ID,
		Version: r.Version,
		Payload: map[string]any{
			vector.PayloadOwner:      r.Owner.String(),
			vector.PayloadCreatedAt:  float64(r.CreatedAt.Unix()),
			vector.PayloadTierRank:   r.Tier.Rank(),
			vector.PayloadSuperseded: r.SupersededBy,
			payloadContent:           r.Content,
			payloadSource:            string(r.Source),
			payloadTier:              string(r.Tier),
			payloadLocked:            r.Locked,
			payloadSignificance:      r.Significance,
			payloadConfidence:        r.Confidence,
			payloadEmotion:           r.EmotionalIntensity,
			payloadAccessCount:       r.AccessCount,
			payloadLastAccessedAt:    float64(r.LastAccessedAt.Unix()),
		},
	}
}

// TierUpdate builds the payload mutation that moves a record to a tier.
func TierUpdate(t Tier) map[string]any {
	return map[string]any{
		payloadTier:            string(t),
		vector.PayloadTierRank: t.Rank(),
	}
}

// SupersedeUpdate builds the payload mutation that marks a record as
// superseded by a newer one.
func SupersedeUpdate(byID string) map[string]any {
	return map[string]any{vector.PayloadSuperseded: byID}
}

// AccessUpdate builds the payload mutation recorded on every retrieval hit.
func AccessUpdate(at time.Time, count int64) map[string]any {
	return map[string]any{
		payloadLastAccessedAt: float64(at.Unix()),
		payloadAccessCount:    count,
	}
}

// SignificanceUpdate builds the payload mutation written by a rescore.
func SignificanceUpdate(score float64, locked bool) map[string]any {
	return map[string]any{
		payloadSignificance: score,
		payloadLocked:       locked,
	}
}

// DecodeRecord reconstructs a record from a stored point. Unknown payload
// fields, unknown tiers and unknown source types are ErrInvariant: the caller
// quarantines the record instead of guessing.
func DecodeRecord(p vector.Point) (*MemoryRecord, error) {
	for key := range p.Payload {
		if _, ok := knownPayloadKeys[key]; !ok {
			return nil, fmt.Errorf("%w: record %s carries unknown field %q", ErrInvariant, p.ID, key)
		}
	}

	owner, err := ParseOwnerKey(payloadString(p.Payload, vector.PayloadOwner))
	if err != nil {
		return nil, fmt.Errorf("%w: record %s: malformed owner key", ErrInvariant, p.ID)
	}

	tier, err := ParseTier(payloadString(p.Payload, payloadTier))
	if err != nil {
		return nil, fmt.Errorf("record %s: %w", p.ID, err)
	}

	source, err := ParseSourceType(payloadString(p.Payload, payloadSource))
	if err != nil {
		return nil, fmt.Errorf("%w: record %s: %v", ErrInvariant, p.ID, err)
	}

	return &MemoryRecord{
		ID:                 p.ID,
		Owner:              owner,
		Content:            payloadString(p.Payload, payloadContent),
		Source:             source,
		Tier:               tier,
		Significance:       payloadFloat(p.Payload, payloadSignificance),
		Locked:             payloadBool(p.Payload, payloadLocked),
		Confidence:         payloadFloat(p.Payload, payloadConfidence),
		EmotionalIntensity: payloadFloat(p.Payload, payloadEmotion),
		AccessCount:        payloadInt(p.Payload, payloadAccessCount),
		CreatedAt:          payloadTime(p.Payload, vector.PayloadCreatedAt),
		LastAccessedAt:     payloadTime(p.Payload, payloadLastAccessedAt),
		SupersededBy:       payloadString(p.Payload, vector.PayloadSuperseded),
		Version:            p.Version,
	}, nil
}

func payloadString(payload map[string]any, key string) string {
	s, _ := payload[key].(string)
	return s
}

func payloadBool(payload map[string]any, key string) bool {
	b, _ := payload[key].(bool)
	return b
}

// payloadFloat tolerates the numeric types the drivers round-trip through
// (JSON decodes to float64, qdrant integers arrive as int64).
func payloadFloat(payload map[string]any, key string) float64 {
	switch v := payload[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int64:
		return float64(v)
	case int:
		return float64(v)
	}
	return 0
}

func payloadInt(payload map[string]any, key string) int64 {
	switch v := payload[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(math.Round(v))
	}
	return 0
}

func payloadTime(payload map[string]any, key string) time.Time {
	sec := payloadFloat(payload, key)
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(int64(sec), 0).UTC()
}
