package memory_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/reveriehq/engram/pkg/memory"
	"github.com/reveriehq/engram/pkg/vector"
)

var _ = Describe("Record payload codec", func() {
	var rec *memory.MemoryRecord

	BeforeEach(func() {
		owner, err := memory.NewOwnerKey("u1", "elena")
		Expect(err).NotTo(HaveOccurred())

		rec = &memory.MemoryRecord{
			ID:                 "01J8ZQ6T9V3N2K4M6P8R0S1T2U",
			Owner:              owner,
			Content:            "I moved to Lisbon last month",
			Source:             memory.SourceDirectStatement,
			Tier:               memory.TierHot,
			Significance:       0.72,
			Confidence:         0.95,
			EmotionalIntensity: 0.4,
			AccessCount:        3,
			CreatedAt:          time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC),
			LastAccessedAt:     time.Date(2026, 2, 12, 15, 30, 0, 0, time.UTC),
			Version:            5,
		}
	})

	It("round-trips a record through a point", func() {
		point := memory.EncodeRecord(rec)
		Expect(point.ID).To(Equal(rec.ID))

		decoded, err := memory.DecodeRecord(point)
		Expect(err).NotTo(HaveOccurred())
		Expect(decoded.ID).To(Equal(rec.ID))
		Expect(decoded.Owner).To(Equal(rec.Owner))
		Expect(decoded.Content).To(Equal(rec.Content))
		Expect(decoded.Source).To(Equal(rec.Source))
		Expect(decoded.Tier).To(Equal(rec.Tier))
		Expect(decoded.Significance).To(Equal(rec.Significance))
		Expect(decoded.Confidence).To(Equal(rec.Confidence))
		Expect(decoded.EmotionalIntensity).To(Equal(rec.EmotionalIntensity))
		Expect(decoded.AccessCount).To(Equal(rec.AccessCount))
		Expect(decoded.CreatedAt).To(BeTemporally("==", rec.CreatedAt))
		Expect(decoded.LastAccessedAt).To(BeTemporally("==", rec.LastAccessedAt))
		Expect(decoded.Superseded()).To(BeFalse())
		Expect(decoded.Version).To(Equal(rec.Version))
	})

	It("tolerates the numeric widening JSON round-trips introduce", func() {
		point := memory.EncodeRecord(rec)
		point.Payload["access_count"] = float64(3)
		point.Payload["tier_rank"] = float64(3)

		decoded, err := memory.DecodeRecord(point)
		Expect(err).NotTo(HaveOccurred())
		Expect(decoded.AccessCount).To(Equal(int64(3)))
	})

	It("rejects payloads carrying unknown fields", func() {
		point := memory.EncodeRecord(rec)
		point.Payload["mood_ring"] = "purple"

		_, err := memory.DecodeRecord(point)
		Expect(err).To(MatchError(memory.ErrInvariant))
		Expect(err.Error()).To(ContainSubstring("mood_ring"))
	})

	It("rejects unknown tiers instead of guessing", func() {
		point := memory.EncodeRecord(rec)
		point.Payload["tier"] = "lukewarm"

		_, err := memory.DecodeRecord(point)
		Expect(err).To(MatchError(memory.ErrInvariant))
	})

	It("rejects unknown source types instead of guessing", func() {
		point := memory.EncodeRecord(rec)
		point.Payload["source_type"] = "rumor"

		_, err := memory.DecodeRecord(point)
		Expect(err).To(MatchError(memory.ErrInvariant))
	})

	It("preserves supersession pointers", func() {
		rec.SupersededBy = "01J8ZQ7XABCDEF0123456789AB"
		point := memory.EncodeRecord(rec)
		Expect(point.Payload[vector.PayloadSuperseded]).To(Equal(rec.SupersededBy))

		decoded, err := memory.DecodeRecord(point)
		Expect(err).NotTo(HaveOccurred())
		Expect(decoded.Superseded()).To(BeTrue())
		Expect(decoded.SupersededBy).To(Equal(rec.SupersededBy))
	})
})
