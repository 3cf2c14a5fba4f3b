package memory_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/reveriehq/engram/pkg/memory"
)

var _ = Describe("OwnerKey", func() {
	It("round-trips through its canonical form", func() {
		owner, err := memory.NewOwnerKey("u1", "elena")
		Expect(err).NotTo(HaveOccurred())
		Expect(owner.String()).To(Equal("u1|elena"))

		parsed, err := memory.ParseOwnerKey("u1|elena")
		Expect(err).NotTo(HaveOccurred())
		Expect(parsed).To(Equal(owner))
	})

	It("rejects empty IDs", func() {
		_, err := memory.NewOwnerKey("", "elena")
		Expect(err).To(MatchError(memory.ErrValidation))

		_, err = memory.NewOwnerKey("u1", "")
		Expect(err).To(MatchError(memory.ErrValidation))
	})

	It("rejects the separator inside IDs", func() {
		_, err := memory.NewOwnerKey("u|1", "elena")
		Expect(err).To(MatchError(memory.ErrValidation))
	})

	It("rejects malformed canonical forms", func() {
		_, err := memory.ParseOwnerKey("just-a-user")
		Expect(err).To(MatchError(memory.ErrValidation))
	})
})

var _ = Describe("Tier", func() {
	It("ranks hot above warm above cold above quarantined", func() {
		Expect(memory.TierHot.Rank()).To(BeNumerically(">", memory.TierWarm.Rank()))
		Expect(memory.TierWarm.Rank()).To(BeNumerically(">", memory.TierCold.Rank()))
		Expect(memory.TierCold.Rank()).To(BeNumerically(">", memory.TierQuarantined.Rank()))
	})

	It("demotes one step at a time and bottoms out at cold", func() {
		Expect(memory.TierHot.Below()).To(Equal(memory.TierWarm))
		Expect(memory.TierWarm.Below()).To(Equal(memory.TierCold))
		Expect(memory.TierCold.Below()).To(Equal(memory.TierCold))
	})

	It("rejects unknown tier values", func() {
		_, err := memory.ParseTier("lukewarm")
		Expect(err).To(MatchError(memory.ErrInvariant))
	})
})

var _ = Describe("SourceType", func() {
	It("orders trust with direct statements highest", func() {
		Expect(memory.SourceDirectStatement.TrustWeight()).To(Equal(1.0))
		Expect(memory.SourceDirectStatement.TrustWeight()).To(BeNumerically(">", memory.SourceInference.TrustWeight()))
		Expect(memory.SourceInference.TrustWeight()).To(BeNumerically(">", memory.SourceDreamSynthesis.TrustWeight()))
	})

	It("rejects unknown source types", func() {
		_, err := memory.ParseSourceType("rumor")
		Expect(err).To(MatchError(memory.ErrValidation))
	})
})
