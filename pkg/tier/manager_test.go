package tier_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/reveriehq/engram/pkg/embeddings"
	"github.com/reveriehq/engram/pkg/eventstream"
	"github.com/reveriehq/engram/pkg/memory"
	"github.com/reveriehq/engram/pkg/memory/significance"
	"github.com/reveriehq/engram/pkg/tier"
	testutils "github.com/reveriehq/engram/pkg/utils/test"
	"github.com/reveriehq/engram/pkg/vector"
)

var _ = Describe("Manager", func() {
	var (
		ctx       context.Context
		driver    *testutils.MemoryVectorDriver
		publisher *testutils.RecordingPublisher
		clock     *testutils.ManualClock
		manager   *tier.Manager
		owner     memory.OwnerKey
		now       time.Time
	)

	cfg := tier.Config{
		HotIdleAfter:   72 * time.Hour,
		WarmIdleAfter:  21 * 24 * time.Hour,
		ColdRetention:  180 * 24 * time.Hour,
		RetentionFloor: 0.30,
	}

	store := func(id string, t memory.Tier, createdAgo, accessedAgo time.Duration, opts ...func(*memory.MemoryRecord)) {
		rec := &memory.MemoryRecord{
			ID:             id,
			Owner:          owner,
			Content:        "something remembered",
			Source:         memory.SourceInference,
			Tier:           t,
			CreatedAt:      now.Add(-createdAgo),
			LastAccessedAt: now.Add(-accessedAgo),
		}
		for _, opt := range opts {
			opt(rec)
		}
		point := memory.EncodeRecord(rec)
		point.Vectors = map[string][]float32{
			embeddings.PerspectiveContent: {1, 0},
			embeddings.PerspectiveAffect:  {1, 0},
			embeddings.PerspectiveTopic:   {1, 0},
		}
		Expect(driver.Upsert(ctx, []vector.Point{point})).To(Succeed())
	}

	tierOf := func(id string) memory.Tier {
		points, err := driver.Get(ctx, []string{id})
		Expect(err).NotTo(HaveOccurred())
		Expect(points).To(HaveLen(1))
		rec, err := memory.DecodeRecord(points[0])
		Expect(err).NotTo(HaveOccurred())
		return rec.Tier
	}

	BeforeEach(func() {
		ctx = context.Background()
		driver = testutils.NewMemoryVectorDriver()
		publisher = testutils.NewRecordingPublisher()
		now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		clock = testutils.NewManualClock(now)

		scorer := significance.NewScorer(significance.DefaultParams())
		manager = tier.NewManager(driver, scorer, publisher, cfg, zap.NewNop()).WithClock(clock)

		var err error
		owner, err = memory.NewOwnerKey("u1", "elena")
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("Run", func() {
		It("demotes idle hot records to warm", func() {
			store("01HOTIDLE00000000000000001", memory.TierHot, 100*time.Hour, 100*time.Hour)

			stats, err := manager.Run(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.Demoted).To(Equal(1))
			Expect(tierOf("01HOTIDLE00000000000000001")).To(Equal(memory.TierWarm))

			events := publisher.EventsOfType(eventstream.EventTypeTierChanged)
			Expect(events).To(HaveLen(1))
			Expect(events[0].FromTier).To(Equal(string(memory.TierHot)))
			Expect(events[0].ToTier).To(Equal(string(memory.TierWarm)))
		})

		It("keeps recently accessed records in place", func() {
			store("01HOTACTIVE000000000000001", memory.TierHot, 100*time.Hour, time.Hour)

			_, err := manager.Run(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(tierOf("01HOTACTIVE000000000000001")).To(Equal(memory.TierHot))
		})

		It("demotes one tier per sweep, never two", func() {
			store("01VERYIDLE0000000000000001", memory.TierHot, 400*24*time.Hour, 400*24*time.Hour)

			_, err := manager.Run(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(tierOf("01VERYIDLE0000000000000001")).To(Equal(memory.TierWarm))

			_, err = manager.Run(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(tierOf("01VERYIDLE0000000000000001")).To(Equal(memory.TierCold))
		})

		It("never demotes locked records", func() {
			store("01LOCKED000000000000000001", memory.TierHot, 400*24*time.Hour, 400*24*time.Hour,
				func(r *memory.MemoryRecord) { r.Locked = true })

			_, err := manager.Run(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(tierOf("01LOCKED000000000000000001")).To(Equal(memory.TierHot))
		})

		It("locks a record whose recomputed score crosses the threshold, one-way", func() {
			store("01INTENSE00000000000000001", memory.TierHot, time.Minute, time.Minute,
				func(r *memory.MemoryRecord) {
					r.Source = memory.SourceDirectStatement
					r.EmotionalIntensity = 1.0
					r.AccessCount = 100
				})

			stats, err := manager.Run(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.Locked).To(Equal(1))

			points, err := driver.Get(ctx, []string{"01INTENSE00000000000000001"})
			Expect(err).NotTo(HaveOccurred())
			rec, err := memory.DecodeRecord(points[0])
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Locked).To(BeTrue())
			Expect(rec.Significance).To(BeNumerically(">=", 0.85))

			// A second sweep after the record goes stale must not unlock it.
			clock.Advance(365 * 24 * time.Hour)
			_, err = manager.Run(ctx)
			Expect(err).NotTo(HaveOccurred())

			points, err = driver.Get(ctx, []string{"01INTENSE00000000000000001"})
			Expect(err).NotTo(HaveOccurred())
			rec, err = memory.DecodeRecord(points[0])
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Locked).To(BeTrue())
			Expect(rec.Tier).To(Equal(memory.TierHot))
		})

		It("skips superseded and quarantined records", func() {
			store("01SUPERSEDED00000000000001", memory.TierHot, 100*time.Hour, 100*time.Hour,
				func(r *memory.MemoryRecord) { r.SupersededBy = "01REPLACEMENT000000000000B" })
			store("01QUARANTINED0000000000001", memory.TierQuarantined, 100*time.Hour, 100*time.Hour)

			stats, err := manager.Run(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.Rescored).To(BeZero())
			Expect(stats.Skipped).To(Equal(2))
		})

		It("quarantines records that fail to decode", func() {
			point := vector.Point{
				ID:      "01CORRUPT00000000000000001",
				Vectors: map[string][]float32{embeddings.PerspectiveContent: {1, 0}},
				Payload: map[string]any{
					vector.PayloadOwner:      owner.String(),
					vector.PayloadCreatedAt:  float64(now.Add(-time.Hour).Unix()),
					vector.PayloadTierRank:   memory.TierHot.Rank(),
					vector.PayloadSuperseded: "",
					"content":                "??",
					"source_type":            "rumor",
					"tier":                   string(memory.TierHot),
					"locked":                 false,
					"significance_score":     0.1,
					"confidence":             0.1,
					"emotional_intensity":    0.0,
					"access_count":           int64(0),
					"last_accessed_at":       float64(now.Add(-time.Hour).Unix()),
				},
			}
			Expect(driver.Upsert(ctx, []vector.Point{point})).To(Succeed())

			stats, err := manager.Run(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.Quarantined).To(Equal(1))

			points, err := driver.Get(ctx, []string{"01CORRUPT00000000000000001"})
			Expect(err).NotTo(HaveOccurred())
			Expect(points[0].Payload["tier"]).To(Equal(string(memory.TierQuarantined)))
		})
	})

	Describe("Prune", func() {
		It("deletes only expired, low-significance, unlocked cold records", func() {
			// Past retention and below the floor: prunable.
			store("01PRUNABLE0000000000000001", memory.TierCold, 200*24*time.Hour, 200*24*time.Hour)
			// Past retention but locked: kept.
			store("01LOCKEDCOLD0000000000001A", memory.TierCold, 200*24*time.Hour, 200*24*time.Hour,
				func(r *memory.MemoryRecord) { r.Locked = true; r.Significance = 0.1 })
			// Past retention but significant: kept.
			store("01SIGNIFICANT000000000001A", memory.TierCold, 200*24*time.Hour, 200*24*time.Hour,
				func(r *memory.MemoryRecord) { r.Significance = 0.9 })
			// Below retention age: kept.
			store("01YOUNGCOLD000000000000001", memory.TierCold, 10*24*time.Hour, 10*24*time.Hour)
			// Superseded: never pruned.
			store("01SUPERSEDED00000000000001", memory.TierCold, 200*24*time.Hour, 200*24*time.Hour,
				func(r *memory.MemoryRecord) { r.SupersededBy = "01REPLACEMENT000000000000B" })

			pruned, err := manager.Prune(ctx, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(pruned).To(Equal(1))

			points, err := driver.Get(ctx, []string{"01PRUNABLE0000000000000001"})
			Expect(err).NotTo(HaveOccurred())
			Expect(points).To(BeEmpty())
			Expect(driver.Len()).To(Equal(4))
		})

		It("scopes pruning to one owner when given", func() {
			store("01MINE00000000000000000001", memory.TierCold, 200*24*time.Hour, 200*24*time.Hour)

			otherOwner, err := memory.NewOwnerKey("u2", "elena")
			Expect(err).NotTo(HaveOccurred())
			saved := owner
			owner = otherOwner
			store("01THEIRS000000000000000001", memory.TierCold, 200*24*time.Hour, 200*24*time.Hour)
			owner = saved

			pruned, err := manager.Prune(ctx, saved.String())
			Expect(err).NotTo(HaveOccurred())
			Expect(pruned).To(Equal(1))
			Expect(driver.Len()).To(Equal(1))
		})
	})
})
