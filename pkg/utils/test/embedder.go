package testutils

import (
	"context"
	"fmt"
	"hash/fnv"
)

// MockEmbedder is a test embedder that returns predictable embeddings
type MockEmbedder struct {
	// Embeddings maps exact input text to a fixed vector. Tests set entries
	// here to control similarity relationships directly.
	Embeddings map[string][]float32

	// FailOn causes Embed to return an error when the input text matches
	FailOn string

	// FailuresLeft fails that many calls before succeeding, for retry tests.
	FailuresLeft int

	// Calls counts every Embed invocation.
	Calls int
}

func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{
		Embeddings: make(map[string][]float32),
	}
}

func (m *MockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.Calls++

	if m.FailuresLeft > 0 {
		m.FailuresLeft--
		return nil, fmt.Errorf("mock embedding failure (%d left)", m.FailuresLeft)
	}
	if m.FailOn != "" && text == m.FailOn {
		return nil, fmt.Errorf("mock embedding failure for: %s", text)
	}

	if emb, ok := m.Embeddings[text]; ok {
		return emb, nil
	}

	// Deterministic fallback derived from the text so distinct inputs get
	// distinct but stable vectors.
	return hashVector(text), nil
}

func (m *MockEmbedder) Close() error {
	return nil
}

func hashVector(text string) []float32 {
	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, 8)
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float32(seed%1000)/1000.0 - 0.5
	}
	return vec
}
