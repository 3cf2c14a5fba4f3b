package sqlite_test

import (
	"context"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/reveriehq/engram/pkg/storage"
	"github.com/reveriehq/engram/pkg/storage/sqlite"
)

func summaryAt(owner string, start time.Time) *storage.WindowSummary {
	return &storage.WindowSummary{
		OwnerKey:         owner,
		WindowStart:      start,
		WindowEnd:        start.Add(6 * time.Hour),
		SummaryText:      "They talked about the move to Madrid.",
		KeyTopics:        []string{"moving", "madrid"},
		DominantTone:     "excited",
		MessageCount:     5,
		CompressionRatio: 0.12,
		ConfidenceScore:  0.8,
	}
}

var _ = Describe("Store", func() {
	var (
		store *sqlite.Store
		ctx   context.Context
		base  time.Time
	)

	BeforeEach(func() {
		ctx = context.Background()
		base = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

		var err error
		store, err = sqlite.NewStore(":memory:")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(store.Close()).To(Succeed())
	})

	Describe("NewStore", func() {
		It("requires a database path", func() {
			_, err := sqlite.NewStore("")
			Expect(err).To(HaveOccurred())
		})

		It("creates a file database", func() {
			dbPath := filepath.Join(GinkgoT().TempDir(), "summaries.db")

			s, err := sqlite.NewStore(dbPath)
			Expect(err).NotTo(HaveOccurred())
			defer s.Close()

			_, err = os.Stat(dbPath)
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("Insert", func() {
		It("writes a row and reports it", func() {
			inserted, err := store.Insert(ctx, summaryAt("u1|elena", base))
			Expect(err).NotTo(HaveOccurred())
			Expect(inserted).To(BeTrue())
		})

		It("is a no-op for a duplicate window", func() {
			_, err := store.Insert(ctx, summaryAt("u1|elena", base))
			Expect(err).NotTo(HaveOccurred())

			inserted, err := store.Insert(ctx, summaryAt("u1|elena", base))
			Expect(err).NotTo(HaveOccurred())
			Expect(inserted).To(BeFalse())
		})

		It("keeps the same window distinct across owners", func() {
			_, err := store.Insert(ctx, summaryAt("u1|elena", base))
			Expect(err).NotTo(HaveOccurred())

			inserted, err := store.Insert(ctx, summaryAt("u2|marco", base))
			Expect(err).NotTo(HaveOccurred())
			Expect(inserted).To(BeTrue())
		})
	})

	Describe("LatestWindowEnd", func() {
		It("returns the zero time for an unseen owner", func() {
			latest, err := store.LatestWindowEnd(ctx, "u1|elena")
			Expect(err).NotTo(HaveOccurred())
			Expect(latest.IsZero()).To(BeTrue())
		})

		It("returns the newest window end", func() {
			_, err := store.Insert(ctx, summaryAt("u1|elena", base))
			Expect(err).NotTo(HaveOccurred())
			_, err = store.Insert(ctx, summaryAt("u1|elena", base.Add(6*time.Hour)))
			Expect(err).NotTo(HaveOccurred())

			latest, err := store.LatestWindowEnd(ctx, "u1|elena")
			Expect(err).NotTo(HaveOccurred())
			Expect(latest).To(BeTemporally("==", base.Add(12*time.Hour)))
		})
	})

	Describe("List", func() {
		BeforeEach(func() {
			for i := 0; i < 3; i++ {
				_, err := store.Insert(ctx, summaryAt("u1|elena", base.Add(time.Duration(i)*6*time.Hour)))
				Expect(err).NotTo(HaveOccurred())
			}
		})

		It("returns summaries newest window first", func() {
			summaries, err := store.List(ctx, "u1|elena", 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(summaries).To(HaveLen(3))
			Expect(summaries[0].WindowStart).To(BeTemporally(">", summaries[1].WindowStart))
			Expect(summaries[1].WindowStart).To(BeTemporally(">", summaries[2].WindowStart))
		})

		It("round-trips the full row", func() {
			summaries, err := store.List(ctx, "u1|elena", 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(summaries).To(HaveLen(1))

			got := summaries[0]
			Expect(got.KeyTopics).To(Equal([]string{"moving", "madrid"}))
			Expect(got.DominantTone).To(Equal("excited"))
			Expect(got.MessageCount).To(Equal(5))
			Expect(got.CompressionRatio).To(BeNumerically("~", 0.12, 1e-9))
			Expect(got.ConfidenceScore).To(BeNumerically("~", 0.8, 1e-9))
		})

		It("respects the limit", func() {
			summaries, err := store.List(ctx, "u1|elena", 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(summaries).To(HaveLen(2))
		})

		It("scopes to the owner", func() {
			summaries, err := store.List(ctx, "u2|marco", 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(summaries).To(BeEmpty())
		})
	})
})
