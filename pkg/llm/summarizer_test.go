package llm_test

import (
	"context"
	"fmt"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/reveriehq/engram/pkg/llm"
)

var _ = Describe("CallSummarizer", func() {
	It("parses a clean JSON response", func() {
		s := llm.NewSummarizer(func(_ context.Context, _ string) (string, error) {
			return `{"summary_text":"They planned a trip.","key_topics":["travel"],"dominant_tone":"excited","confidence_score":0.8}`, nil
		})

		summary, err := s.Summarize(context.Background(), "doc")
		Expect(err).NotTo(HaveOccurred())
		Expect(summary.SummaryText).To(Equal("They planned a trip."))
		Expect(summary.KeyTopics).To(Equal([]string{"travel"}))
		Expect(summary.DominantTone).To(Equal("excited"))
		Expect(summary.ConfidenceScore).To(Equal(0.8))
	})

	It("unwraps markdown-fenced JSON", func() {
		s := llm.NewSummarizer(func(_ context.Context, _ string) (string, error) {
			return "```json\n{\"summary_text\":\"A quiet catch-up.\",\"dominant_tone\":\"warm\",\"confidence_score\":0.7}\n```", nil
		})

		summary, err := s.Summarize(context.Background(), "doc")
		Expect(err).NotTo(HaveOccurred())
		Expect(summary.SummaryText).To(Equal("A quiet catch-up."))
	})

	It("rejects responses without summary text", func() {
		s := llm.NewSummarizer(func(_ context.Context, _ string) (string, error) {
			return `{"key_topics":["nothing"]}`, nil
		})

		_, err := s.Summarize(context.Background(), "doc")
		Expect(err).To(HaveOccurred())
	})

	It("zeroes out-of-range confidence scores", func() {
		s := llm.NewSummarizer(func(_ context.Context, _ string) (string, error) {
			return `{"summary_text":"ok","confidence_score":3.5}`, nil
		})

		summary, err := s.Summarize(context.Background(), "doc")
		Expect(err).NotTo(HaveOccurred())
		Expect(summary.ConfidenceScore).To(BeZero())
	})

	It("propagates call failures", func() {
		s := llm.NewSummarizer(func(_ context.Context, _ string) (string, error) {
			return "", fmt.Errorf("upstream unavailable")
		})

		_, err := s.Summarize(context.Background(), "doc")
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("upstream unavailable"))
	})

	It("bounds the document sent to the model", func() {
		var promptLen int
		s := llm.NewSummarizer(func(_ context.Context, prompt string) (string, error) {
			promptLen = len(prompt)
			return `{"summary_text":"ok"}`, nil
		})

		_, err := s.Summarize(context.Background(), strings.Repeat("x", 100_000))
		Expect(err).NotTo(HaveOccurred())
		Expect(promptLen).To(BeNumerically("<", 40_000))
	})
})
