// Package llm provides the completion-service boundary used by the
// enrichment worker to compress conversation windows into summaries.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Summary is the structured output of a summarization call.
type Summary struct {
	SummaryText     string   `json:"summary_text"`
	KeyTopics       []string `json:"key_topics"`
	DominantTone    string   `json:"dominant_tone"`
	ConfidenceScore float64  `json:"confidence_score"`
}

// CallFunc is the signature for a raw LLM inference call.
type CallFunc func(ctx context.Context, prompt string) (string, error)

// Summarizer produces a window summary from an assembled document. It is an
// opaque, possibly slow, possibly failing external call; retry and backoff
// belong to the caller, not here.
type Summarizer interface {
	Summarize(ctx context.Context, document string) (*Summary, error)
}

// CallSummarizer implements Summarizer on top of a CallFunc.
type CallSummarizer struct {
	call CallFunc
}

// NewSummarizer wraps a raw LLM caller into a Summarizer.
func NewSummarizer(call CallFunc) *CallSummarizer {
	return &CallSummarizer{call: call}
}

// maxDocumentChars bounds the document size sent to the completion service.
const maxDocumentChars = 30000

// Summarize prompts the completion service for a structured summary of the
// document and parses the JSON reply.
func (s *CallSummarizer) Summarize(ctx context.Context, document string) (*Summary, error) {
	if len(document) > maxDocumentChars {
		document = document[:maxDocumentChars]
	}

	response, err := s.call(ctx, buildSummaryPrompt(document))
	if err != nil {
		return nil, fmt.Errorf("llm call: %w", err)
	}

	summary, err := parseSummaryResponse(response)
	if err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	return summary, nil
}

func buildSummaryPrompt(document string) string {
	return "Summarize this span of remembered conversation between a user and a character agent.\nReturn ONLY valid JSON with these fields:\n\n{\n  \"summary_text\": \"2-4 sentence compressed summary of what was said and learned\",\n  \"key_topics\": [\"array of the main subjects discussed, most prominent first\"],\n  \"dominant_tone\": \"one of: warm, neutral, tense, playful, melancholy, excited, confessional\",\n  \"confidence_score\": 0.0\n}\n\nconfidence_score is your confidence in the summary's faithfulness, between 0 and 1.\n\nConversation span:\n" + document
}

// parseSummaryResponse extracts the JSON object from the response (which may
// be wrapped in markdown code blocks) and decodes it.
func parseSummaryResponse(response string) (*Summary, error) {
	jsonStr := response
	if idx := strings.Index(response, "{"); idx >= 0 {
		endIdx := strings.LastIndex(response, "}")
		if endIdx > idx {
			jsonStr = response[idx : endIdx+1]
		}
	}

	var summary Summary
	if err := json.Unmarshal([]byte(jsonStr), &summary); err != nil {
		return nil, fmt.Errorf("unmarshal summary JSON: %w", err)
	}

	if summary.SummaryText == "" {
		return nil, fmt.Errorf("summary_text missing from response")
	}
	if summary.ConfidenceScore < 0 || summary.ConfidenceScore > 1 {
		summary.ConfidenceScore = 0
	}

	return &summary, nil
}

var _ Summarizer = (*CallSummarizer)(nil)
