package testutils

import (
	"context"
	"fmt"

	"github.com/reveriehq/engram/pkg/llm"
)

// MockSummarizer is a scripted llm.Summarizer that records the documents it
// was asked to summarize.
type MockSummarizer struct {
	// Result is returned for every call unless FailAll is set.
	Result *llm.Summary

	// FailAll causes Summarize to return an error.
	FailAll bool

	// Documents accumulates every document passed in.
	Documents []string
}

// NewMockSummarizer creates a summarizer returning a fixed plausible summary.
func NewMockSummarizer() *MockSummarizer {
	return &MockSummarizer{
		Result: &llm.Summary{
			SummaryText:     "They talked about the week and plans for the garden.",
			KeyTopics:       []string{"garden", "plans"},
			DominantTone:    "warm",
			ConfidenceScore: 0.9,
		},
	}
}

func (m *MockSummarizer) Summarize(_ context.Context, document string) (*llm.Summary, error) {
	m.Documents = append(m.Documents, document)
	if m.FailAll {
		return nil, fmt.Errorf("mock summarizer failure")
	}
	cp := *m.Result
	return &cp, nil
}

var _ llm.Summarizer = (*MockSummarizer)(nil)
